// Package binary reads and writes the little-endian layouts used by Solana
// program state and instruction data.
package binary

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/pkg/errors"
)

// ErrShortBuffer is returned when a read runs past the end of the data.
var ErrShortBuffer = errors.New("buffer too short for layout")

// Encoder writes fields sequentially into a fixed size buffer.
type Encoder struct {
	buf []byte
	off int
}

func NewEncoder(buf []byte) *Encoder {
	return &Encoder{buf: buf}
}

// Offset returns the number of bytes written so far.
func (e *Encoder) Offset() int {
	return e.off
}

func (e *Encoder) Uint8(v uint8) {
	e.buf[e.off] = v
	e.off++
}

func (e *Encoder) Uint32(v uint32) {
	binary.LittleEndian.PutUint32(e.buf[e.off:], v)
	e.off += 4
}

func (e *Encoder) Uint64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[e.off:], v)
	e.off += 8
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint8(1)
	} else {
		e.Uint8(0)
	}
}

func (e *Encoder) Key(k ed25519.PublicKey) {
	copy(e.buf[e.off:e.off+ed25519.PublicKeySize], k)
	e.off += ed25519.PublicKeySize
}

// OptionalKey writes a COption<Pubkey>: a tag of tagSize bytes followed by
// the key, which is left zeroed when absent.
func (e *Encoder) OptionalKey(k ed25519.PublicKey, tagSize int) {
	if len(k) > 0 {
		e.buf[e.off] = 1
		copy(e.buf[e.off+tagSize:], k)
	}
	e.off += tagSize + ed25519.PublicKeySize
}

// OptionalUint64 writes a COption<u64>.
func (e *Encoder) OptionalUint64(v *uint64, tagSize int) {
	if v != nil {
		e.buf[e.off] = 1
		binary.LittleEndian.PutUint64(e.buf[e.off+tagSize:], *v)
	}
	e.off += tagSize + 8
}

// Decoder reads fields sequentially. The first short read is sticky and
// reported by Err; subsequent reads return zero values.
type Decoder struct {
	buf []byte
	off int
	err error
}

func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) next(n int) []byte {
	if d.err != nil {
		return nil
	}
	if d.off+n > len(d.buf) {
		d.err = errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, d.off, len(d.buf))
		return nil
	}

	b := d.buf[d.off : d.off+n]
	d.off += n
	return b
}

func (d *Decoder) Uint8() uint8 {
	if b := d.next(1); b != nil {
		return b[0]
	}
	return 0
}

func (d *Decoder) Uint32() uint32 {
	if b := d.next(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (d *Decoder) Uint64() uint64 {
	if b := d.next(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (d *Decoder) Bool() bool {
	return d.Uint8() != 0
}

func (d *Decoder) Key() ed25519.PublicKey {
	b := d.next(ed25519.PublicKeySize)
	if b == nil {
		return nil
	}

	k := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(k, b)
	return k
}

// OptionalKey reads a COption<Pubkey>, returning nil when the tag is unset.
func (d *Decoder) OptionalKey(tagSize int) ed25519.PublicKey {
	tag := d.next(tagSize)
	k := d.Key()
	if tag == nil || tag[0] != 1 {
		return nil
	}
	return k
}

// OptionalUint64 reads a COption<u64>, returning nil when the tag is unset.
func (d *Decoder) OptionalUint64(tagSize int) *uint64 {
	tag := d.next(tagSize)
	v := d.Uint64()
	if tag == nil || tag[0] != 1 {
		return nil
	}
	return &v
}
