// Package secretbuf implements SecretBuffer: an owned region of locked
// memory that is wiped on destruction. It is the only type in Ecliptix
// allowed to hold raw secret bytes.
package secretbuf

import (
	"crypto/subtle"
	"fmt"
	"runtime"

	"github.com/awnumar/memguard"

	"github.com/ecliptix-labs/ecliptix-core/ecliptixerr"
)

// Buffer is a fixed-length region of locked, wipe-on-destruction memory. The
// zero value is not usable; construct with New or NewFromBytes.
//
// Buffer never exposes its backing array directly: View lends a bounded
// read-only slice whose lifetime is tied to the call, and Equal compares in
// constant time.
type Buffer struct {
	lb     *memguard.LockedBuffer
	closed bool
}

// New allocates a zeroed Buffer of the given length.
func New(length int) (*Buffer, error) {
	if length <= 0 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "secretbuf.New", fmt.Errorf("length must be positive, got %d", length))
	}
	lb := memguard.NewBuffer(length)
	if lb == nil || lb.Size() != length {
		return nil, ecliptixerr.New(ecliptixerr.ResourceExhausted, "secretbuf.New", fmt.Errorf("failed to lock %d bytes", length))
	}
	return &Buffer{lb: lb}, nil
}

// NewFromBytes allocates a Buffer carrying a copy of src, then wipes src in
// place so the caller's copy never lingers on the regular heap.
func NewFromBytes(src []byte) (*Buffer, error) {
	if len(src) == 0 {
		return nil, ecliptixerr.New(ecliptixerr.InvalidInput, "secretbuf.NewFromBytes", fmt.Errorf("src must not be empty"))
	}
	lb := memguard.NewBufferFromBytes(src)
	if lb == nil || lb.Size() != len(src) {
		Wipe(src)
		return nil, ecliptixerr.New(ecliptixerr.ResourceExhausted, "secretbuf.NewFromBytes", fmt.Errorf("failed to lock %d bytes", len(src)))
	}
	return &Buffer{lb: lb}, nil
}

// Len returns the buffer's length in bytes.
func (b *Buffer) Len() int {
	if b == nil || b.lb == nil {
		return 0
	}
	return b.lb.Size()
}

// View lends a bounded read-only view of the buffer's contents to fn. The
// slice passed to fn must not be retained past the call.
func (b *Buffer) View(fn func(p []byte)) error {
	if b == nil || b.closed || b.lb == nil {
		return ecliptixerr.New(ecliptixerr.Terminated, "secretbuf.View", fmt.Errorf("buffer closed or nil"))
	}
	fn(b.lb.Bytes())
	return nil
}

// Bytes returns a defensive copy of the buffer's contents. Prefer View when
// the caller does not need to retain the material past the immediate use,
// since Bytes places a copy on the regular (unlocked) heap.
func (b *Buffer) Bytes() ([]byte, error) {
	if b == nil || b.closed || b.lb == nil {
		return nil, ecliptixerr.New(ecliptixerr.Terminated, "secretbuf.Bytes", fmt.Errorf("buffer closed or nil"))
	}
	out := make([]byte, b.lb.Size())
	copy(out, b.lb.Bytes())
	return out, nil
}

// Equal reports, in constant time with respect to the position of the first
// difference, whether b's contents equal other's.
func (b *Buffer) Equal(other *Buffer) bool {
	if b == nil || other == nil || b.closed || other.closed {
		return false
	}
	if b.Len() != other.Len() {
		return false
	}
	return subtle.ConstantTimeCompare(b.lb.Bytes(), other.lb.Bytes()) == 1
}

// EqualBytes reports, in constant time, whether b's contents equal raw.
func (b *Buffer) EqualBytes(raw []byte) bool {
	if b == nil || b.closed || len(raw) != b.Len() {
		return false
	}
	return subtle.ConstantTimeCompare(b.lb.Bytes(), raw) == 1
}

// Destroy wipes and releases the underlying locked region. Destroy is
// idempotent and safe to call more than once.
func (b *Buffer) Destroy() {
	if b == nil || b.lb == nil {
		return
	}
	b.lb.Destroy()
	b.closed = true
}

// Wipe overwrites p with zeros. It is used for transient plaintext scratch
// space (derived intermediates, wire buffers) that is not itself worth the
// cost of a locked allocation but must not outlive its use.
//
//go:noinline
func Wipe(p []byte) {
	for i := range p {
		p[i] = 0
	}
	runtime.KeepAlive(p)
}
