// Blob file primitives.
//
// A Blob is a growable append-only byte file addressed entirely by
// offset. Every higher layer (deduplicator, column codecs, image
// accessor) reads and writes through this single abstraction so that
// the on/off mmap toggle is the only place file-vs-memory access is
// decided.
//
// An unmapped Blob is writable; a mapped Blob is read-only — writes to
// a mapped file fail fast rather than silently corrupting the mapping.
package rowstore

import (
	"encoding/binary"
	"io"
	"os"
	"sync"
)

// Blob wraps a single on-disk file with append/read/map primitives.
// The zero value is not usable; construct with openBlob or createBlob.
type Blob struct {
	mu     sync.Mutex
	file   *os.File
	tail   int64 // current append offset, maintained to avoid repeated Stat
	mapped []byte
}

// createBlob creates a fresh, empty, writable blob file at path.
func createBlob(path string) (*Blob, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrap(IoError, "blob.create", err)
	}
	return &Blob{file: f}, nil
}

// openBlob opens an existing blob file for reading and writing.
func openBlob(path string) (*Blob, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, wrap(IoError, "blob.open", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrap(IoError, "blob.open", err)
	}
	return &Blob{file: f, tail: info.Size()}, nil
}

// Size returns the current byte length of the file.
func (b *Blob) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tail
}

// Append writes data at the end of the file and returns the offset it
// was written at. Atomic within the process: the tail bump and write
// happen under the same lock, mirroring the teacher's raw() (write.go)
// which holds a mutex across the equivalent of lseek(END)+write.
func (b *Blob) Append(data []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped != nil {
		return 0, ErrMapped
	}

	offset := b.tail
	n, err := b.file.WriteAt(data, offset)
	if err != nil {
		return 0, wrap(IoError, "blob.append", err)
	}
	b.tail += int64(n)
	return offset, nil
}

// WriteAt overwrites length bytes at an existing offset; used for
// patching the header once the image is complete. Fails on a mapped file.
func (b *Blob) WriteAt(offset int64, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped != nil {
		return ErrMapped
	}
	if _, err := b.file.WriteAt(data, offset); err != nil {
		return wrap(IoError, "blob.writeAt", err)
	}
	return nil
}

// Read returns a copy of length bytes starting at offset. Works whether
// or not the file is currently mapped.
func (b *Blob) Read(offset int64, length int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked(offset, length)
}

func (b *Blob) readLocked(offset int64, length int) ([]byte, error) {
	if b.mapped != nil {
		if offset < 0 || offset+int64(length) > int64(len(b.mapped)) {
			return nil, wrap(IoError, "blob.read", io.ErrUnexpectedEOF)
		}
		out := make([]byte, length)
		copy(out, b.mapped[offset:offset+int64(length)])
		return out, nil
	}

	out := make([]byte, length)
	if _, err := b.file.ReadAt(out, offset); err != nil {
		return nil, wrap(IoError, "blob.read", err)
	}
	return out, nil
}

// ReadCString reads a NUL-terminated string starting at offset.
func (b *Blob) ReadCString(offset int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped != nil {
		end := offset
		for end < int64(len(b.mapped)) && b.mapped[end] != 0 {
			end++
		}
		if end >= int64(len(b.mapped)) {
			return "", wrap(IoError, "blob.readCString", io.ErrUnexpectedEOF)
		}
		return string(b.mapped[offset:end]), nil
	}

	const chunk = 256
	var buf []byte
	pos := offset
	for {
		tmp := make([]byte, chunk)
		n, err := b.file.ReadAt(tmp, pos)
		if n == 0 && err != nil {
			return "", wrap(IoError, "blob.readCString", err)
		}
		if idx := indexByte(tmp[:n], 0); idx >= 0 {
			buf = append(buf, tmp[:idx]...)
			return string(buf), nil
		}
		buf = append(buf, tmp[:n]...)
		pos += int64(n)
		if err != nil {
			return "", wrap(IoError, "blob.readCString", io.ErrUnexpectedEOF)
		}
	}
}

// AppendCString appends a NUL-terminated string and returns its offset.
func (b *Blob) AppendCString(s string) (int64, error) {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return b.Append(buf)
}

// ReadWord reads a single platform-word (int64) cell at offset.
func (b *Blob) ReadWord(offset int64) (int64, error) {
	raw, err := b.Read(offset, 8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(raw)), nil
}

// WriteWord writes a single platform-word (int64) cell at offset.
func (b *Blob) WriteWord(offset int64, v int64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(v))
	return b.WriteAt(offset, buf[:])
}

// Map memory-maps the file read-only. Fails if the file is empty; on a
// blob that is already mapped it is a no-op and returns nil.
func (b *Blob) Map() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped != nil {
		return nil
	}
	if b.tail == 0 {
		return wrap(StateError, "blob.map", io.ErrUnexpectedEOF)
	}

	data, err := mmapFile(b.file, int(b.tail))
	if err != nil {
		return wrap(IoError, "blob.map", err)
	}
	b.mapped = data
	return nil
}

// Unmap releases the mapping, returning the blob to writable state.
func (b *Blob) Unmap() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mapped == nil {
		return nil
	}
	if err := munmapFile(b.mapped); err != nil {
		return wrap(IoError, "blob.unmap", err)
	}
	b.mapped = nil
	return nil
}

// Close unmaps (if needed) and closes the underlying file.
func (b *Blob) Close() error {
	_ = b.Unmap()
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file.Close()
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}
