// Package maskedio reads a big-endian byte stream that has been XOR-masked
// with a fixed, repeating key. Class files on disk are stored masked; every
// byte the loader touches passes through Reader first.
package maskedio

import "errors"

// ErrEndOfInput is returned once the underlying buffer is exhausted.
var ErrEndOfInput = errors.New("maskedio: end of input")

// Key is the fixed 20-byte XOR mask applied to every byte in a class file,
// keyed by position modulo len(Key).
var Key = [20]byte{
	0xAA, 0x3F, 0xC2, 0x7D, 0x91, 0x4B, 0x6E, 0xF0, 0x12, 0x8D,
	0x55, 0x99, 0x0A, 0xDE, 0x6B, 0x3C, 0x47, 0x81, 0x2F, 0xB4,
}

// Reader unmasks and decodes a byte slice in place as it is read.
type Reader struct {
	data []byte
	pos  int
}

// New wraps data for masked reading. data is the raw, still-masked bytes.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// Tell returns the current read offset.
func (r *Reader) Tell() int { return r.pos }

// Seek moves the read offset to an absolute position. It does not validate
// p against the buffer length; a subsequent read past the end reports
// ErrEndOfInput, matching the attribute-skip use of Seek in the class
// decoder.
func (r *Reader) Seek(p int) { r.pos = p }

// Len returns the total number of bytes in the underlying buffer.
func (r *Reader) Len() int { return len(r.data) }

// ReadU1 reads and unmasks a single byte.
func (r *Reader) ReadU1() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, ErrEndOfInput
	}
	b := r.data[r.pos] ^ Key[r.pos%len(Key)]
	r.pos++
	return b, nil
}

// ReadU2 reads a big-endian masked uint16.
func (r *Reader) ReadU2() (uint16, error) {
	hi, err := r.ReadU1()
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadU1()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// ReadU4 reads a big-endian masked uint32.
func (r *Reader) ReadU4() (uint32, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		b, err := r.ReadU1()
		if err != nil {
			return 0, err
		}
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// ReadBytes reads and unmasks n consecutive bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		b, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// Mask returns data with the key applied, used symmetrically both to
// encode test fixtures and to decode real class files (XOR is its own
// inverse).
func Mask(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ Key[i%len(Key)]
	}
	return out
}
