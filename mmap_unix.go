//go:build unix || linux || darwin

// mmap(2) implementation for Unix platforms, mirroring the build-tag
// split the teacher uses for OS file locking (lock_unix.go).
package rowstore

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapFile(f *os.File, length int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, length, unix.PROT_READ, unix.MAP_SHARED)
}

func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
