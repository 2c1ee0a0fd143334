// Package mmapbuf implements the file-backed, page-aligned, header-stamped
// growable byte region of spec.md §3/§4.2 ("Mmap buffer (C2)"). A Buffer
// wraps a single backing file with a fixed 8-byte header
// {magic uint32, used uint32} followed by payload bytes. Growth truncates
// the backing file to a new page-aligned size and remaps it; the file
// itself provides durability across remaps, matching the teacher's
// mmap-WAL idiom (other_examples/marmos91-dittofs mmap_shared.go) and the
// raw mmap/munmap/ftruncate call sequence in
// other_examples/calvinalkan-agent-task open.go.
package mmapbuf

import (
	"encoding/binary"
	"os"

	"github.com/TMac-wei/mylogger/internal/errors"
)

const (
	// Magic is the fixed on-disk header magic for a valid cache file.
	Magic = uint32(0xDEADBEEF)

	headerSize = 8 // magic uint32 + used uint32, little-endian

	// MinCapacity is the minimum file size, per spec.md §3 ("capacity ...
	// >= 512 KiB").
	MinCapacity = 512 * 1024
)

var byteOrder = binary.LittleEndian

// Buffer is a file-backed, page-aligned growable byte region.
type Buffer struct {
	file     *os.File
	data     []byte // the full mapped region, header included
	pageSize int
	valid    bool
}

// Open creates path if absent and maps at least
// max(defaultCapacity, current file size) bytes, rounded up to a multiple
// of the OS page size. If the file already carries a valid header the
// existing payload is preserved (the recovery path of spec.md §4.9 step 5).
func Open(path string, defaultCapacity int) (*Buffer, error) {
	if defaultCapacity < MinCapacity {
		defaultCapacity = MinCapacity
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, errors.E(errors.IO, "open mmap file", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.E(errors.IO, "stat mmap file", err)
	}

	freshFile := info.Size() == 0

	pageSize := osPageSize()
	want := defaultCapacity
	if int(info.Size()) > want {
		want = int(info.Size())
	}
	cap := alignUp(want, pageSize)

	if int(info.Size()) != cap {
		if err := f.Truncate(int64(cap)); err != nil {
			f.Close()
			return nil, errors.E(errors.IO, "truncate mmap file", err)
		}
	}

	data, err := mmapFile(f, cap)
	if err != nil {
		f.Close()
		return nil, errors.E(errors.IO, "mmap file", err)
	}

	b := &Buffer{file: f, data: data, pageSize: pageSize}
	onDiskMagic := byteOrder.Uint32(b.data[0:4])
	// A freshly created, empty file has never been stamped and is not
	// corruption; anything else with a mismatched magic is.
	b.valid = freshFile || onDiskMagic == Magic
	if onDiskMagic != Magic {
		byteOrder.PutUint32(b.data[0:4], Magic)
		byteOrder.PutUint32(b.data[4:8], 0)
	}
	return b, nil
}

func alignUp(n, align int) int {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// IsValid reports whether the header magic matches.
func (b *Buffer) IsValid() bool { return b.valid }

// Capacity returns the total payload capacity, excluding the header.
func (b *Buffer) Capacity() int { return len(b.data) - headerSize }

// Size returns the number of live payload bytes ("used").
func (b *Buffer) Size() int { return int(byteOrder.Uint32(b.data[4:8])) }

// Data returns the live payload [0, Size()).
func (b *Buffer) Data() []byte {
	used := b.Size()
	return b.data[headerSize : headerSize+used]
}

func (b *Buffer) setUsed(n int) { byteOrder.PutUint32(b.data[4:8], uint32(n)) }

// Empty reports whether the buffer currently holds no payload.
func (b *Buffer) Empty() bool { return b.Size() == 0 }

// Ratio returns used / capacity, in [0, 1].
func (b *Buffer) Ratio() float64 {
	cap := b.Capacity()
	if cap == 0 {
		return 0
	}
	return float64(b.Size()) / float64(cap)
}

// Clear sets used = 0 without touching capacity.
func (b *Buffer) Clear() { b.setUsed(0) }

// Push appends p to the payload, growing the backing file if necessary.
func (b *Buffer) Push(p []byte) error {
	used := b.Size()
	need := used + len(p)
	if need > b.Capacity() {
		if err := b.grow(need); err != nil {
			return err
		}
	}
	copy(b.data[headerSize+used:headerSize+used+len(p)], p)
	b.setUsed(used + len(p))
	return nil
}

// Resize sets used directly. newUsed must be <= Capacity(); growth beyond
// capacity is not performed (callers needing that should Push instead).
func (b *Buffer) Resize(newUsed int) error {
	if newUsed > b.Capacity() {
		return errors.E(errors.IO, "resize beyond capacity")
	}
	b.setUsed(newUsed)
	return nil
}

// grow ensures the backing file (and mapping) can hold at least
// requiredPayload bytes of payload, unmapping, truncating, and remapping.
// Payload contents are preserved by the backing file across the remap.
func (b *Buffer) grow(requiredPayload int) error {
	newTotal := alignUp(requiredPayload+headerSize, b.pageSize)
	if newTotal <= len(b.data) {
		return nil
	}
	additional := uint64(newTotal - len(b.data))
	if avail, err := availableBytes(b.file); err == nil && avail < additional {
		return errors.E(errors.IO, "insufficient disk space to grow mmap buffer")
	}
	if err := munmapFile(b.data); err != nil {
		return errors.E(errors.IO, "unmap for growth", err)
	}
	if err := b.file.Truncate(int64(newTotal)); err != nil {
		return errors.E(errors.IO, "truncate for growth", err)
	}
	data, err := mmapFile(b.file, newTotal)
	if err != nil {
		return errors.E(errors.IO, "remap after growth", err)
	}
	b.data = data
	return nil
}

// Sync advisorily flushes the mapping to disk.
func (b *Buffer) Sync() error {
	return syncFile(b.data)
}

// Close unmaps and closes the backing file.
func (b *Buffer) Close() (err error) {
	if uerr := munmapFile(b.data); uerr != nil {
		err = errors.E(errors.IO, "unmap on close", uerr)
	}
	errors.CleanUp(b.file.Close, &err)
	return err
}
