package model

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/okian/wagerpool/internal/domain/address"
)

// DiscriminatorSize is the length of the record type tag at offset 0.
const DiscriminatorSize = 8

// MaxIDLen bounds every persisted identifier string. Round ids double as
// derivation seeds, so the limit matches address.MaxSeedLength.
const MaxIDLen = address.MaxSeedLength

// string slot = u32 length prefix + reserved bytes.
const stringSlot = 4 + MaxIDLen

// Discriminator is the 8-byte type tag written at the start of every record.
type Discriminator [DiscriminatorSize]byte

func discriminatorFor(name string) Discriminator {
	sum := sha256.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// IsZeroed reports whether data has not been initialized as any record type.
func IsZeroed(data []byte) bool {
	if len(data) < DiscriminatorSize {
		return true
	}
	var zero Discriminator
	return bytes.Equal(data[:DiscriminatorSize], zero[:])
}

// writer appends little-endian fields into a fixed-size record buffer.
type writer struct {
	buf []byte
	off int
	err error
}

func newWriter(space int, d Discriminator) *writer {
	w := &writer{buf: make([]byte, space)}
	w.raw(d[:])
	return w
}

func (w *writer) raw(b []byte) {
	if w.err != nil {
		return
	}
	if w.off+len(b) > len(w.buf) {
		w.err = ErrRecordTooSmall
		return
	}
	copy(w.buf[w.off:], b)
	w.off += len(b)
}

func (w *writer) u8(v uint8) { w.raw([]byte{v}) }

func (w *writer) boolean(v bool) {
	if v {
		w.u8(1)
		return
	}
	w.u8(0)
}

func (w *writer) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.raw(b[:])
}

func (w *writer) addr(a address.Address) { w.raw(a[:]) }

func (w *writer) str(s string) {
	if len(s) > MaxIDLen {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %d bytes", ErrIDTooLong, len(s))
		}
		return
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(len(s))) //nolint:gosec // bounded by MaxIDLen
	w.raw(b[:])
	w.raw([]byte(s))
}

func (w *writer) bytes() ([]byte, error) {
	if w.err != nil {
		return nil, w.err
	}
	return w.buf, nil
}

// reader decodes fields written by writer.
type reader struct {
	buf []byte
	off int
	err error
}

func newReader(data []byte, d Discriminator) (*reader, error) {
	if IsZeroed(data) {
		return nil, ErrNotInitialized
	}
	if !bytes.Equal(data[:DiscriminatorSize], d[:]) {
		return nil, ErrDiscriminatorMismatch
	}
	return &reader{buf: data, off: DiscriminatorSize}, nil
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return make([]byte, n)
	}
	if r.off+n > len(r.buf) {
		r.err = ErrRecordTooSmall
		return make([]byte, n)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u8() uint8 { return r.take(1)[0] }

func (r *reader) boolean() bool {
	switch v := r.u8(); v {
	case 0:
		return false
	case 1:
		return true
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w: bool byte %d", ErrInvalidRecord, v)
		}
		return false
	}
}

func (r *reader) u64() uint64 { return binary.LittleEndian.Uint64(r.take(8)) }

func (r *reader) addr() address.Address {
	var a address.Address
	copy(a[:], r.take(address.Size))
	return a
}

func (r *reader) str() string {
	n := binary.LittleEndian.Uint32(r.take(4))
	if n > MaxIDLen {
		if r.err == nil {
			r.err = fmt.Errorf("%w: string length %d", ErrInvalidRecord, n)
		}
		return ""
	}
	return string(r.take(int(n)))
}
