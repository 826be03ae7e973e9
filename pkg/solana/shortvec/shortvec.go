// Package shortvec implements the compact-u16 length prefix used in Solana
// transaction and message encodings.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedSize is the largest number of bytes a compact-u16 can occupy.
const MaxEncodedSize = 3

var (
	ErrLengthOverflow = errors.Errorf("length exceeds %d", math.MaxUint16)
	ErrNonCanonical   = errors.New("non-canonical length encoding")
)

// AppendLen appends the compact-u16 encoding of n to dst.
func AppendLen(dst []byte, n int) ([]byte, error) {
	if n < 0 {
		return dst, errors.Errorf("negative length: %d", n)
	}
	if n > math.MaxUint16 {
		return dst, ErrLengthOverflow
	}

	for n >= 0x80 {
		dst = append(dst, byte(n&0x7f)|0x80)
		n >>= 7
	}
	return append(dst, byte(n)), nil
}

// EncodeLen writes the compact-u16 encoding of n to w.
func EncodeLen(w io.Writer, n int) (int, error) {
	var scratch [MaxEncodedSize]byte
	encoded, err := AppendLen(scratch[:0], n)
	if err != nil {
		return 0, err
	}
	return w.Write(encoded)
}

// DecodeLen reads a compact-u16 from r. Encodings with redundant trailing
// zero groups or values above math.MaxUint16 are rejected.
func DecodeLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < MaxEncodedSize; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, errors.Wrap(err, "failed to read length")
		}

		if i > 0 && b == 0 {
			return 0, ErrNonCanonical
		}

		val |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if val > math.MaxUint16 {
				return 0, ErrLengthOverflow
			}
			return val, nil
		}

		if i == MaxEncodedSize-1 {
			break
		}
	}
	return 0, errors.Errorf("length exceeds %d bytes", MaxEncodedSize)
}
