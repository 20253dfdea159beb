package dataset

import (
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

const (
	ImagesMagic = 0x00000803
	LabelsMagic = 0x00000801
)

var (
	// ErrFormat reports a file that isn't the expected IDX kind.
	ErrFormat = errors.New("dataset format error")
	// ErrTruncated reports a read past the end of the data.
	ErrTruncated = errors.New("dataset truncated")
)

// Images is a decoded IDX image file: Count records of Rows×Cols grayscale
// bytes, row-major.
type Images struct {
	Rows   int
	Cols   int
	Pixels [][]byte
}

// DecodeImages parses an IDX3 image file held in memory.
func DecodeImages(b []byte) (*Images, error) {
	r := NewReader(b)
	magic, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != ImagesMagic {
		return nil, errors.Wrapf(ErrFormat, "wrong magic number 0x%08x for images, want 0x%08x", magic, ImagesMagic)
	}

	var header [3]uint32
	for i := range header {
		if header[i], err = r.ReadUint32(); err != nil {
			return nil, errors.Wrap(err, "reading image header")
		}
	}
	count, rows, cols := header[0], header[1], header[2]

	size := uint64(rows) * uint64(cols)
	if size == 0 {
		return nil, errors.Wrapf(ErrFormat, "image size %dx%d", rows, cols)
	}
	// count*size may not fit in 64 bits
	if uint64(count) > uint64(r.Remaining())/size {
		return nil, errors.Wrapf(ErrTruncated, "%d images of %dx%d, only %d bytes left", count, rows, cols, r.Remaining())
	}

	images := &Images{
		Rows:   int(rows),
		Cols:   int(cols),
		Pixels: make([][]byte, count),
	}
	for i := range images.Pixels {
		if images.Pixels[i], err = r.ReadBytes(int(size)); err != nil {
			return nil, errors.Wrapf(err, "reading image %d", i)
		}
	}
	return images, nil
}

// DecodeLabels parses an IDX1 label file held in memory.
func DecodeLabels(b []byte) ([]byte, error) {
	r := NewReader(b)
	magic, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "reading magic")
	}
	if magic != LabelsMagic {
		return nil, errors.Wrapf(ErrFormat, "wrong magic number 0x%08x for labels, want 0x%08x", magic, LabelsMagic)
	}

	count, err := r.ReadUint32()
	if err != nil {
		return nil, errors.Wrap(err, "reading label count")
	}
	labels, err := r.ReadBytes(int(count))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %d labels", count)
	}
	return labels, nil
}

// ReadFile reads a whole file, gunzipping it when the name ends in .gz.
func ReadFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return b, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrapf(err, "opening gzip %s", path)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, errors.Wrapf(err, "decompressing %s", path)
	}
	return out, nil
}

// Load reads an IDX image file and its label file.
func Load(imagesPath, labelsPath string) (*Dataset, error) {
	b, err := ReadFile(imagesPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading images")
	}
	images, err := DecodeImages(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", imagesPath)
	}

	b, err = ReadFile(labelsPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading labels")
	}
	labels, err := DecodeLabels(b)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s", labelsPath)
	}

	return New(images.Cols, images.Rows, images.Pixels, labels)
}
