//go:build windows

package mmapbuf

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

// windowsPageSize is the standard Windows page size; there is no portable
// GetPageSize equivalent exposed by golang.org/x/sys/windows, so this
// mirrors the constant most Windows mmap shims hardcode.
const windowsPageSize = 4096

func osPageSize() int { return windowsPageSize }

func mmapFile(f *os.File, size int) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READWRITE, 0, uint32(size), nil)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(h)
	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

func munmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}

func syncFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}

// availableBytes reports the free space on the volume backing f.
func availableBytes(f *os.File) (uint64, error) {
	path, err := windows.UTF16PtrFromString(f.Name())
	if err != nil {
		return 0, err
	}
	var freeBytes uint64
	if err := windows.GetDiskFreeSpaceEx(path, &freeBytes, nil, nil); err != nil {
		return 0, err
	}
	return freeBytes, nil
}
