package dataset

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

type errInvalidLine struct {
	lineNum  int
	fields   int
	expected int
}

func (e errInvalidLine) Error() string {
	return fmt.Sprintf("at line %d, expected %d values, got %d",
		e.lineNum, e.expected, e.fields)
}

// LoadCSV reads rows of "label,p0,p1,...". The first value is the label, the
// rest are the width×height pixel intensities 0-255. A leading header row is
// skipped.
func LoadCSV(reader io.Reader, width, height int) (*Dataset, error) {
	r := csv.NewReader(bufio.NewReader(reader))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	size := width * height
	var images [][]byte
	var labels []byte
	for lineNum := 1; ; lineNum++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(ErrFormat, "line %d: %v", lineNum, err)
		}
		if len(record) != size+1 {
			return nil, errors.Wrap(ErrFormat, errInvalidLine{
				lineNum:  lineNum,
				fields:   len(record),
				expected: size + 1,
			}.Error())
		}

		label, err := strconv.ParseUint(record[0], 10, 8)
		if err != nil {
			if lineNum == 1 {
				continue
			}
			return nil, errors.Wrapf(ErrFormat, "parsing label at line %d: %v", lineNum, err)
		}

		pixels := make([]byte, size)
		for i := range pixels {
			v, err := strconv.ParseUint(record[i+1], 10, 8)
			if err != nil {
				return nil, errors.Wrapf(ErrFormat, "parsing pixel %d at line %d: %v", i, lineNum, err)
			}
			pixels[i] = byte(v)
		}
		images = append(images, pixels)
		labels = append(labels, byte(label))
	}

	return New(width, height, images, labels)
}
