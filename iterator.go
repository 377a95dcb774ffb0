// Iterator: a positioned walk over a RowHandler's sequence (spec.md §4.6).
//
// Grounded on original_source/iterator.h's forward/backward cursor, but
// flattened to a single concrete type instead of a class hierarchy —
// the handler supplies positioning and comparison, the iterator just
// walks it. Count() and the primary-key renderer are supplemented from
// original_source (not present in spec.md's literal scenarios, see
// SPEC_FULL.md §4.5).
package rowstore

// Iterator walks a RowHandler's sequence against a borrowed Image. The
// image's reference count is held for the iterator's lifetime; callers
// must call Close when done.
type Iterator struct {
	img     *Image
	handler RowHandler
	pos     int64
}

// NewIterator borrows img and returns an iterator positioned at 0.
func NewIterator(img *Image, h RowHandler) *Iterator {
	img.acquire()
	return &Iterator{img: img, handler: h, pos: 0}
}

// Close releases the iterator's hold on its image.
func (it *Iterator) Close() {
	it.img.release()
}

// Len reports the number of positions in the underlying sequence.
func (it *Iterator) Len() int64 { return it.handler.Len() }

// Valid reports whether the current position refers to a real row.
func (it *Iterator) Valid() bool {
	return it.pos >= 0 && it.pos < it.handler.Len()
}

// Seek moves the cursor to an absolute position.
func (it *Iterator) Seek(pos int64) { it.pos = pos }

// Next advances the cursor by one position.
func (it *Iterator) Next() { it.pos++ }

// Prev moves the cursor back by one position.
func (it *Iterator) Prev() { it.pos-- }

// RowOffset returns the row-table byte offset at the current position.
func (it *Iterator) RowOffset() int64 { return it.handler.At(it.pos) }

// Cells reads every cell of the row at the current position.
func (it *Iterator) Cells() ([]int64, error) {
	if !it.Valid() {
		return nil, ErrEmpty
	}
	return it.img.cellsAtOffset(it.RowOffset(), it.img.ColumnCount())
}

// Value renders the given column's value at the current position,
// applying its display layout.
func (it *Iterator) Value(col *Column) (string, error) {
	cells, err := it.Cells()
	if err != nil {
		return "", err
	}
	return col.ToString(it.img, cells[col.ID()])
}

// PrimaryKeyText renders the composite primary-key text for the
// current row — the original's primary_key() rendering (SPEC_FULL.md §4.5).
func (it *Iterator) PrimaryKeyText(primary []*Column) (string, error) {
	cells, err := it.Cells()
	if err != nil {
		return "", err
	}
	var out string
	for _, col := range primary {
		s, err := col.ToString(it.img, cells[col.ID()])
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}

// Count returns how many consecutive rows starting at the current
// position still compare equal (a prefix match) against key — the
// original's Iterator::count(), supplemented from original_source since
// spec.md's literal scenarios only ever ask for the first match
// (SPEC_FULL.md §4.5).
func (it *Iterator) Count(key string) (int64, error) {
	var n int64
	for p := it.pos; p < it.handler.Len(); p++ {
		c, err := it.handler.CompareKey(p, key)
		if err != nil {
			return n, err
		}
		if c != 0 {
			break
		}
		n++
	}
	return n, nil
}
