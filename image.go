// Image: the on-disk/mmapped binary artifact described in spec.md §3.
//
// Layout, in file order: Header, Source manifest, Payload arena, Row
// table, Secondary indexes, Index directory. The header is written as
// a zeroed placeholder first and patched last (§3 "Lifecycle"), so a
// crash mid-build leaves primaryOffset == 0 and the image is
// self-describing as incomplete (invariant I3).
//
// Unlike the teacher's JSON header (folio's header.go), this header is
// a packed sequence of fixed-width words: spec §6 requires "Word size =
// platform size_t; byte order = host. Not portable." — a requirement
// a human-readable JSON preamble cannot satisfy, so the header here is
// five raw little-endian int64 words instead. The "write zeroed
// placeholder, patch last" discipline itself is carried over unchanged
// from header.go.
package rowstore

import (
	"encoding/binary"
	"sync"
	"time"
)

// HeaderSize is the fixed size of the packed binary header, in bytes.
// Five words (40 bytes) rounded up to a cache-line-friendly size,
// matching the teacher's convention of padding the header to a round
// constant (folio's HeaderSize = 128).
const HeaderSize = 64

// ImageHeader is the fixed-size record at offset 0 of an image file.
type ImageHeader struct {
	Updated       int64 // unix ms, construction time (I6)
	PrimaryOffset int64 // byte offset of the row table; 0 = incomplete (I3)
	Columns       int64 // column count, i.e. row stride
	IndexesCount  int64
	IndexesOffset int64 // byte offset of the index directory
}

func (h *ImageHeader) encode() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(h.Updated))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(h.PrimaryOffset))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.Columns))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.IndexesCount))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.IndexesOffset))
	return buf
}

func decodeHeader(buf []byte) (*ImageHeader, error) {
	if len(buf) < 40 {
		return nil, wrap(IoError, "image.header", errShortHeader)
	}
	return &ImageHeader{
		Updated:       int64(binary.LittleEndian.Uint64(buf[0:8])),
		PrimaryOffset: int64(binary.LittleEndian.Uint64(buf[8:16])),
		Columns:       int64(binary.LittleEndian.Uint64(buf[16:24])),
		IndexesCount:  int64(binary.LittleEndian.Uint64(buf[24:32])),
		IndexesOffset: int64(binary.LittleEndian.Uint64(buf[32:40])),
	}, nil
}

var errShortHeader = shortHeaderErr{}

type shortHeaderErr struct{}

func (shortHeaderErr) Error() string { return "image header shorter than expected" }

// SourceFile records one ingested input file's path and modification
// time, as written into the source manifest.
type SourceFile struct {
	Path  string
	MTime time.Time
}

// Image is a read-only, reference-counted handle onto a built image
// file. Construction validates the header; callers borrow the image
// for the duration of a call and release it when done (release).
//
// The design note "shared_ptr<File> passed everywhere becomes shared
// ownership by reference-counted handle on the image as a whole" is
// implemented literally: refs tracks outstanding iterators/queries and
// the backing Blob only unmaps once the count drops to zero after the
// container has moved on to a newer image.
type Image struct {
	blob    *Blob
	header  *ImageHeader
	sources []SourceFile

	refMu sync.Mutex
	refs  int
	freed bool
}

func openImage(path string) (*Image, error) {
	blob, err := openBlob(path)
	if err != nil {
		return nil, err
	}
	return buildImage(blob)
}

func buildImage(blob *Blob) (*Image, error) {
	raw, err := blob.Read(0, HeaderSize)
	if err != nil {
		blob.Close()
		return nil, err
	}
	hdr, err := decodeHeader(raw)
	if err != nil {
		blob.Close()
		return nil, err
	}
	if hdr.PrimaryOffset == 0 {
		blob.Close()
		return nil, wrap(StateError, "image.open", errIncomplete)
	}

	sources, err := readManifest(blob)
	if err != nil {
		blob.Close()
		return nil, err
	}

	if err := blob.Map(); err != nil {
		blob.Close()
		return nil, err
	}

	return &Image{blob: blob, header: hdr, sources: sources}, nil
}

var errIncomplete = incompleteErr{}

type incompleteErr struct{}

func (incompleteErr) Error() string { return "image is incomplete (primary offset is zero)" }

func readManifest(blob *Blob) ([]SourceFile, error) {
	var out []SourceFile
	offset := int64(HeaderSize)
	for {
		path, err := blob.ReadCString(offset)
		if err != nil {
			return nil, err
		}
		if path == "" {
			break
		}
		offset += int64(len(path)) + 1
		mtimeRaw, err := blob.Read(offset, 8)
		if err != nil {
			return nil, err
		}
		ms := int64(binary.LittleEndian.Uint64(mtimeRaw))
		offset += 8
		out = append(out, SourceFile{Path: path, MTime: time.UnixMilli(ms)})
	}
	return out, nil
}

// acquire increments the reference count. Called when an iterator is
// constructed against this image.
func (img *Image) acquire() {
	img.refMu.Lock()
	img.refs++
	img.refMu.Unlock()
}

// release decrements the reference count, unmapping and closing the
// backing file once the last reference drops and the image has been
// retired by the container (matches §3 "Lifecycle").
func (img *Image) release() {
	img.refMu.Lock()
	img.refs--
	shouldFree := img.refs <= 0 && img.freed
	img.refMu.Unlock()
	if shouldFree {
		img.blob.Close()
	}
}

// retire marks the image as no longer the container's active image;
// it is freed once outstanding references drop to zero.
func (img *Image) retire() {
	img.refMu.Lock()
	shouldFree := img.refs <= 0
	img.freed = true
	img.refMu.Unlock()
	if shouldFree {
		img.blob.Close()
	}
}

// RowCount returns the number of rows in the row table.
func (img *Image) RowCount() int64 {
	n, err := img.blob.ReadWord(img.header.PrimaryOffset)
	if err != nil {
		return 0
	}
	return n
}

// ColumnCount returns the row stride (cells per row).
func (img *Image) ColumnCount() int64 {
	return img.header.Columns
}

// rowOffset returns the absolute byte offset of row ordinal `row`
// within the row table (the count word occupies the first 8 bytes).
func (img *Image) rowOffset(row int64) int64 {
	return img.header.PrimaryOffset + 8 + row*img.header.Columns*8
}

// RowCells reads the n cell words for row ordinal `row`.
func (img *Image) RowCells(row int64) ([]int64, error) {
	n := img.header.Columns
	raw, err := img.blob.Read(img.rowOffset(row), int(n*8))
	if err != nil {
		return nil, err
	}
	cells := make([]int64, n)
	for i := range cells {
		cells[i] = int64(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
	}
	return cells, nil
}

// cellsAtOffset reads n cells starting at an absolute row-table byte offset.
func (img *Image) cellsAtOffset(offset int64, n int64) ([]int64, error) {
	raw, err := img.blob.Read(offset, int(n*8))
	if err != nil {
		return nil, err
	}
	cells := make([]int64, n)
	for i := range cells {
		cells[i] = int64(binary.LittleEndian.Uint64(raw[i*8 : i*8+8]))
	}
	return cells, nil
}

// ReadPayload reads length bytes from the payload arena at offset.
func (img *Image) ReadPayload(offset int64, length int) ([]byte, error) {
	return img.blob.Read(offset, length)
}

// ReadPayloadString reads a NUL-terminated string from the payload arena.
func (img *Image) ReadPayloadString(offset int64) (string, error) {
	return img.blob.ReadCString(offset)
}

// SecondaryIndex returns the sorted row-offset slice for the secondary
// index built over columnID, or nil if that column has no index.
func (img *Image) SecondaryIndex(columnID int) ([]int64, error) {
	for i := int64(0); i < img.header.IndexesCount; i++ {
		rec, err := img.blob.Read(img.header.IndexesOffset+i*16, 16)
		if err != nil {
			return nil, err
		}
		id := int64(binary.LittleEndian.Uint64(rec[0:8]))
		off := int64(binary.LittleEndian.Uint64(rec[8:16]))
		if int(id) == columnID {
			count, err := img.blob.ReadWord(off)
			if err != nil {
				return nil, err
			}
			raw, err := img.blob.Read(off+8, int(count*8))
			if err != nil {
				return nil, err
			}
			out := make([]int64, count)
			for j := range out {
				out[j] = int64(binary.LittleEndian.Uint64(raw[j*8 : j*8+8]))
			}
			return out, nil
		}
	}
	return nil, nil
}

// Updated returns the image's construction time (I6).
func (img *Image) Updated() time.Time {
	return time.UnixMilli(img.header.Updated)
}

// Sources returns the source manifest recorded at build time.
func (img *Image) Sources() []SourceFile {
	return img.sources
}

// LastModified returns the minimum mtime across all sources, per the
// observed (and preserved, see spec §9 Open Questions) behaviour of
// the original last_modified() — NOT the most recent source.
func (img *Image) LastModified() time.Time {
	if len(img.sources) == 0 {
		return img.Updated()
	}
	min := img.sources[0].MTime
	for _, s := range img.sources[1:] {
		if s.MTime.Before(min) {
			min = s.MTime
		}
	}
	return min
}
