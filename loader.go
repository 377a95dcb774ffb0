// Loader: builds an Image from one or more CSV source files (spec §4.5).
//
// Grounded on the teacher's Repair (repair.go): both rebuild into a
// fresh file in phases (header placeholder, then payload, then sorted
// sections, then a single patch-the-header commit) and both treat the
// header write as the commit point. Per spec §4.5's failure semantics,
// a single unreadable file is logged and skipped (an IoError from
// opening it) while a parse or value failure inside a file that WAS
// opened aborts the whole build, leaving the container's previous
// active image in place.
package rowstore

import (
	"os"
	"path/filepath"
	"sort"
	"time"
)

// InputFile is one source file selected for a load, alongside its stat
// info at selection time (spec §4.5 "a list of (absolute path, stat) tuples").
type InputFile struct {
	Path  string
	Info  os.FileInfo
}

// CollectSources lists files directly under schema's path whose
// basename matches its filespec regex, in a deterministic (sorted)
// order — the order input files are merged in (spec §4.5 step 4,
// "last write wins per input-file order").
func CollectSources(schema *Schema) ([]InputFile, error) {
	entries, err := os.ReadDir(schema.path)
	if err != nil {
		return nil, wrap(IoError, "loader.collect", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if schema.filespec.MatchString(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []InputFile
	for _, name := range names {
		full := filepath.Join(schema.path, name)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		out = append(out, InputFile{Path: full, Info: info})
	}
	return out, nil
}

// Loader builds images for a Container from its schema's source files.
type Loader struct {
	Container *Container
	// TempDir, if set, is where the staging image file is created.
	// Empty uses the OS default temp directory.
	TempDir string
	// Logger, if set, receives a line for every file skipped due to a
	// read error (spec §1: logging is an external collaborator invoked
	// through a narrow interface).
	Logger func(format string, args ...any)
}

func (l *Loader) logf(format string, args ...any) {
	if l.Logger != nil {
		l.Logger(format, args...)
	}
}

// Load rebuilds the container's active image from its current source
// files. It returns ErrAlreadyLoading if a rebuild is already running,
// NoSources if no files match the schema's filespec, or a ParseError /
// ValueError wrapping the first row that failed to parse.
func (l *Loader) Load() error {
	if err := l.Container.beginLoad(); err != nil {
		return err
	}
	defer l.Container.endLoad()

	schema := l.Container.Schema()

	sources, err := CollectSources(schema)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return wrap(NoSources, "loader.load", noFilesErr{})
	}

	f, err := os.CreateTemp(l.TempDir, "rowstore-image-*.bin")
	if err != nil {
		return wrap(IoError, "loader.load", err)
	}
	path := f.Name()
	f.Close()

	blob, err := openBlob(path)
	if err != nil {
		os.Remove(path)
		return err
	}
	built := false
	defer func() {
		if !built {
			blob.Close()
			os.Remove(path)
		}
	}()

	if _, err := blob.Append(make([]byte, HeaderSize)); err != nil {
		return err
	}

	for _, src := range sources {
		if _, err := blob.AppendCString(src.Path); err != nil {
			return err
		}
		ms := src.Info.ModTime().UnixMilli()
		var buf [8]byte
		putInt64(buf[:], ms)
		if _, err := blob.Append(buf[:]); err != nil {
			return err
		}
	}
	if _, err := blob.Append([]byte{0}); err != nil {
		return err
	}

	dedup := NewDeduplicatorWithAlgorithm(blob, schema.HashAlgorithm())
	shim := &Image{blob: blob}

	merged := make(map[string]*loadRow)
	var order []string

	cols := schema.Columns()
	primary := schema.Primary()

	for _, src := range sources {
		if err := loadOneFile(src, schema, cols, dedup, merged, &order); err != nil {
			if Is(err, IoError) {
				l.logf("rowstore: skipping unreadable file %s: %v", src.Path, err)
				continue
			}
			l.logf("rowstore: aborting build: %s: %v", src.Path, err)
			return err
		}
	}

	rows := make([]*loadRow, 0, len(order))
	for _, k := range order {
		rows = append(rows, merged[k])
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return primaryLess(shim, primary, rows[i].cells, rows[j].cells)
	})

	rowTableOffset, err := blob.Append(make([]byte, 8))
	if err != nil {
		return err
	}
	if err := blob.WriteWord(rowTableOffset, int64(len(rows))); err != nil {
		return err
	}

	offsets := make([]int64, len(rows))
	for i, row := range rows {
		raw := make([]byte, len(row.cells)*8)
		for j, c := range row.cells {
			putInt64(raw[j*8:j*8+8], c)
		}
		off, err := blob.Append(raw)
		if err != nil {
			return err
		}
		offsets[i] = off
	}

	type indexRef struct {
		columnID int
		offset   int64
	}
	var indexRefs []indexRef

	for _, col := range schema.Indexed() {
		var list []int64
		for i, row := range rows {
			if col.IsNull(row.cells[col.ID()]) {
				continue
			}
			list = append(list, offsets[i])
		}
		sort.SliceStable(list, func(a, b int) bool {
			ca := cellAtRowOffset(shim, cols, list[a], col.ID())
			cb := cellAtRowOffset(shim, cols, list[b], col.ID())
			return col.Less(shim, ca, cb)
		})

		buf := make([]byte, 8+len(list)*8)
		putInt64(buf[0:8], int64(len(list)))
		for i, off := range list {
			putInt64(buf[8+i*8:8+i*8+8], off)
		}
		idxOff, err := blob.Append(buf)
		if err != nil {
			return err
		}
		indexRefs = append(indexRefs, indexRef{columnID: col.ID(), offset: idxOff})
	}

	dirBuf := make([]byte, len(indexRefs)*16)
	for i, ref := range indexRefs {
		putInt64(dirBuf[i*16:i*16+8], int64(ref.columnID))
		putInt64(dirBuf[i*16+8:i*16+16], ref.offset)
	}
	indexesOffset, err := blob.Append(dirBuf)
	if err != nil {
		return err
	}

	hdr := &ImageHeader{
		Updated:       time.Now().UnixMilli(),
		PrimaryOffset: rowTableOffset,
		Columns:       int64(len(cols)),
		IndexesCount:  int64(len(indexRefs)),
		IndexesOffset: indexesOffset,
	}
	if err := blob.WriteAt(0, hdr.encode()); err != nil {
		return err
	}

	img, err := buildImage(blob)
	if err != nil {
		return err
	}
	built = true

	l.Container.publish(img)
	return nil
}

type noFilesErr struct{}

func (noFilesErr) Error() string { return "no source files matched the schema's filespec" }

type loadRow struct {
	cells []int64
}

func primaryLess(img *Image, primary []*Column, l, r []int64) bool {
	for _, col := range primary {
		if col.Less(img, l[col.ID()], r[col.ID()]) {
			return true
		}
		if col.Less(img, r[col.ID()], l[col.ID()]) {
			return false
		}
	}
	return false
}

func cellAtRowOffset(img *Image, cols []*Column, rowOffset int64, colID int) int64 {
	cells, err := img.cellsAtOffset(rowOffset, int64(len(cols)))
	if err != nil {
		return 0
	}
	return cells[colID]
}

func putInt64(buf []byte, v int64) {
	u := uint64(v)
	buf[0] = byte(u)
	buf[1] = byte(u >> 8)
	buf[2] = byte(u >> 16)
	buf[3] = byte(u >> 24)
	buf[4] = byte(u >> 32)
	buf[5] = byte(u >> 40)
	buf[6] = byte(u >> 48)
	buf[7] = byte(u >> 56)
}

// loadOneFile parses one CSV source into merged/order. A failure to
// open src.Path is returned as IoError; the caller (Load) logs it and
// continues with the remaining sources rather than aborting (spec
// §4.5: "a single unreadable file is logged and skipped"). A failure
// to parse a file that DID open is returned as ParseError/ValueError,
// which the caller treats as fatal to the whole build.
func loadOneFile(src InputFile, schema *Schema, cols []*Column, dedup *Deduplicator, merged map[string]*loadRow, order *[]string) error {
	f, err := os.Open(src.Path)
	if err != nil {
		return wrap(IoError, "loader.loadFile", err)
	}
	defer f.Close()

	reader := newCSVReader(f)

	header, err := reader.readRecord()
	if err != nil {
		return wrap(ParseError, "loader.loadFile", err)
	}

	sourceToSchema := make([]int, len(header))
	for i, name := range header {
		sourceToSchema[i] = -1
		for _, col := range cols {
			if col.Matches(name) {
				sourceToSchema[i] = col.ID()
				break
			}
		}
	}

	for {
		fields, err := reader.readRecord()
		if err != nil {
			if Is(err, ParseError) {
				return err
			}
			break // io.EOF or a scanner error; either way, stop this file
		}
		if allBlank(fields) {
			break // deliberate early-terminator convention (spec §4.5 step 3)
		}

		cells := make([]int64, len(cols))
		for i, raw := range fields {
			if i >= len(sourceToSchema) || sourceToSchema[i] == -1 {
				continue
			}
			colID := sourceToSchema[i]
			cell, err := cols[colID].Save(dedup, trimField(raw))
			if err != nil {
				return err
			}
			cells[colID] = cell
		}

		key := primaryKeyBytes(schema.Primary(), cells)
		if existing, ok := merged[key]; ok {
			for _, col := range cols {
				if !col.IsPrimary() {
					existing.cells[col.ID()] = cells[col.ID()]
				}
			}
		} else {
			merged[key] = &loadRow{cells: cells}
			*order = append(*order, key)
		}
	}

	return nil
}

func trimField(s string) string {
	start, end := 0, len(s)
	for start < end && isSpace(s[start]) {
		start++
	}
	for end > start && isSpace(s[end-1]) {
		end--
	}
	return s[start:end]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }

func primaryKeyBytes(primary []*Column, cells []int64) string {
	buf := make([]byte, len(primary)*8)
	for i, col := range primary {
		putInt64(buf[i*8:i*8+8], cells[col.ID()])
	}
	return string(buf)
}
