// Package dataset loads labelled grayscale digit images and turns them into
// network input and target vectors.
package dataset

import (
	"github.com/pkg/errors"
)

// Classes is the number of distinct digit labels.
const Classes = 10

// Dataset pairs images with their labels.
type Dataset struct {
	Width  int
	Height int

	images [][]byte
	labels []byte
}

// New checks that every image has Width×Height pixels, that there is one
// label per image and that every label is a digit.
func New(width, height int, images [][]byte, labels []byte) (*Dataset, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrFormat, "image size %dx%d", width, height)
	}
	if len(images) != len(labels) {
		return nil, errors.Wrapf(ErrFormat, "%d images but %d labels", len(images), len(labels))
	}
	for i, img := range images {
		if len(img) != width*height {
			return nil, errors.Wrapf(ErrFormat, "image %d has %d pixels, want %d", i, len(img), width*height)
		}
		if labels[i] >= Classes {
			return nil, errors.Wrapf(ErrFormat, "label %d of image %d is not a digit", labels[i], i)
		}
	}
	return &Dataset{Width: width, Height: height, images: images, labels: labels}, nil
}

func (d *Dataset) Len() int {
	return len(d.images)
}

// Size is the pixel count of one image, the network input size.
func (d *Dataset) Size() int {
	return d.Width * d.Height
}

func (d *Dataset) Image(i int) []byte {
	return d.images[i]
}

func (d *Dataset) Label(i int) byte {
	return d.labels[i]
}

// Input writes image i scaled to [0, 1] into dst, allocating it when it is too
// short, and returns it.
func (d *Dataset) Input(i int, dst []float64) []float64 {
	img := d.images[i]
	if cap(dst) < len(img) {
		dst = make([]float64, len(img))
	}
	dst = dst[:len(img)]
	for j, p := range img {
		dst[j] = float64(p) / 255.0
	}
	return dst
}

// Target returns the one-hot expected output for image i.
func (d *Dataset) Target(i int) []float64 {
	t := make([]float64, Classes)
	t[d.labels[i]] = 1
	return t
}

// Limit returns a view of at most the first n samples. n <= 0 keeps all.
func (d *Dataset) Limit(n int) *Dataset {
	if n <= 0 || n >= d.Len() {
		return d
	}
	return &Dataset{Width: d.Width, Height: d.Height, images: d.images[:n], labels: d.labels[:n]}
}
