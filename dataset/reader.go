package dataset

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Reader walks a byte slice holding big-endian records.
type Reader struct {
	buf    []byte
	cursor int
}

func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Remaining is the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.cursor
}

func (r *Reader) ensure(n int) error {
	if n < 0 || r.cursor+n > len(r.buf) {
		return errors.Wrapf(ErrTruncated, "want %d bytes but %d left at offset %d", n, r.Remaining(), r.cursor)
	}
	return nil
}

func (r *Reader) ReadByte() (byte, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	v := r.buf[r.cursor]
	r.cursor++
	return v, nil
}

// ReadBytes returns the next n bytes. The slice aliases the underlying buffer.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.ensure(n); err != nil {
		return nil, err
	}
	v := r.buf[r.cursor : r.cursor+n : r.cursor+n]
	r.cursor += n
	return v, nil
}

func (r *Reader) ReadUint16() (uint16, error) {
	if err := r.ensure(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.buf[r.cursor:])
	r.cursor += 2
	return v, nil
}

func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.ensure(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.buf[r.cursor:])
	r.cursor += 4
	return v, nil
}
