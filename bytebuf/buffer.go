// Package bytebuf implements an owned, contiguous, growable byte buffer
// (spec.md §3 "Byte-span buffer (C1)"). Growth is geometric and never
// reallocates below the buffer's current capacity; Resize preserves the
// overlapping prefix. It is the scratch storage threaded through the sink's
// hot path (compress/encrypt staging) and has no concurrency guarantees of
// its own — callers coordinate externally, as spec.md §5 requires for the
// sink's codec-under-mutex design.
package bytebuf

// Buffer is an owned mutable byte sequence with size <= capacity.
type Buffer struct {
	data []byte
	size int
}

// New returns a Buffer with the given initial capacity.
func New(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// Size returns the number of live bytes.
func (b *Buffer) Size() int { return b.size }

// Capacity returns the number of bytes the buffer can hold without
// reallocating.
func (b *Buffer) Capacity() int { return len(b.data) }

// Data returns the live prefix [0, Size()).
func (b *Buffer) Data() []byte { return b.data[:b.size] }

// Clear empties the buffer without releasing its storage.
func (b *Buffer) Clear() { b.size = 0 }

// grow ensures capacity for at least n more bytes, doubling (at least)
// when the current capacity is insufficient.
func (b *Buffer) grow(extra int) {
	need := b.size + extra
	if need <= len(b.data) {
		return
	}
	newCap := len(b.data) * 2
	if newCap < need {
		newCap = need
	}
	if newCap < 64 {
		newCap = 64
	}
	grown := make([]byte, newCap)
	copy(grown, b.data[:b.size])
	b.data = grown
}

// Append copies p onto the end of the buffer, growing if necessary.
func (b *Buffer) Append(p []byte) {
	b.grow(len(p))
	copy(b.data[b.size:], p)
	b.size += len(p)
}

// Resize sets the live size to n, preserving the prefix up to
// min(old size, n). Growing beyond capacity allocates; the newly exposed
// bytes are zeroed.
func (b *Buffer) Resize(n int) {
	if n <= len(b.data) {
		if n > b.size {
			for i := b.size; i < n; i++ {
				b.data[i] = 0
			}
		}
		b.size = n
		return
	}
	grown := make([]byte, n)
	copy(grown, b.data[:b.size])
	b.data = grown
	b.size = n
}
