// Key handlers: the three ways a query key is matched against a row
// sequence (spec.md §4.6), grounded on original_source/iterator.h's
// PrimaryKeyHandler/ColumnKeyHandler/CustomKeyHandler split. Rather than
// a class hierarchy the three live behind one RowHandler interface,
// the same composition-over-inheritance shape used for column.go's codec.
package rowstore

// RowHandler presents an ordered sequence of row offsets, bisectable by
// a string key via a column-appropriate comparison.
type RowHandler interface {
	// Len returns the number of positions in the sequence.
	Len() int64
	// At returns the absolute row-table byte offset at pos.
	At(pos int64) int64
	// CompareKey compares the row at pos against key, using whatever
	// prefix-compare rule is appropriate for this handler's column(s).
	CompareKey(pos int64, key string) (int, error)
}

// PrimaryKeyHandler bisects the full row table by its composite primary
// key, rendered by concatenating each primary column's padded text
// (two zero-filled width-3 columns holding 1 and 1 render as "001001").
type PrimaryKeyHandler struct {
	img     *Image
	primary []*Column
}

// NewPrimaryKeyHandler returns a handler over img's full row table.
func NewPrimaryKeyHandler(img *Image, primary []*Column) *PrimaryKeyHandler {
	return &PrimaryKeyHandler{img: img, primary: primary}
}

func (h *PrimaryKeyHandler) Len() int64      { return h.img.RowCount() }
func (h *PrimaryKeyHandler) At(pos int64) int64 { return h.img.rowOffset(pos) }

func (h *PrimaryKeyHandler) CompareKey(pos int64, key string) (int, error) {
	rendered, err := h.renderKey(pos)
	if err != nil {
		return 0, err
	}
	return comparePrefix(rendered, key, signBytes), nil
}

func (h *PrimaryKeyHandler) renderKey(pos int64) (string, error) {
	cells, err := h.img.cellsAtOffset(h.img.rowOffset(pos), h.img.ColumnCount())
	if err != nil {
		return "", err
	}
	var out string
	for _, col := range h.primary {
		s, err := col.ToString(h.img, cells[col.ID()])
		if err != nil {
			return "", err
		}
		out += s
	}
	return out, nil
}

// ColumnKeyHandler bisects a single column's secondary index.
type ColumnKeyHandler struct {
	img     *Image
	col     *Column
	offsets []int64
}

// NewColumnKeyHandler returns a handler over col's secondary index.
func NewColumnKeyHandler(img *Image, col *Column) (*ColumnKeyHandler, error) {
	offsets, err := img.SecondaryIndex(col.ID())
	if err != nil {
		return nil, err
	}
	return &ColumnKeyHandler{img: img, col: col, offsets: offsets}, nil
}

func (h *ColumnKeyHandler) Len() int64         { return int64(len(h.offsets)) }
func (h *ColumnKeyHandler) At(pos int64) int64 { return h.offsets[pos] }

func (h *ColumnKeyHandler) CompareKey(pos int64, key string) (int, error) {
	cells, err := h.img.cellsAtOffset(h.offsets[pos], h.img.ColumnCount())
	if err != nil {
		return 0, err
	}
	return h.col.Compare(h.img, cells[h.col.ID()], key)
}

// CustomKeyHandler adapts an arbitrary caller-supplied sequence and
// comparator to RowHandler — the escape hatch iterator.h reserves for
// query engines that are not a plain single- or composite-column
// bisection (e.g. a caller-assembled candidate list).
type CustomKeyHandler struct {
	length  int64
	at      func(pos int64) int64
	compare func(pos int64, key string) (int, error)
}

// NewCustomKeyHandler builds a RowHandler from explicit callbacks.
func NewCustomKeyHandler(length int64, at func(int64) int64, compare func(int64, string) (int, error)) *CustomKeyHandler {
	return &CustomKeyHandler{length: length, at: at, compare: compare}
}

func (h *CustomKeyHandler) Len() int64         { return h.length }
func (h *CustomKeyHandler) At(pos int64) int64 { return h.at(pos) }
func (h *CustomKeyHandler) CompareKey(pos int64, key string) (int, error) {
	return h.compare(pos, key)
}

// Find bisects handler for the leftmost row whose CompareKey against
// key is zero (a prefix match), per spec §4.6's search algorithm.
// It returns the position and true on a match, or false if key sorts
// outside every row or matches none exactly.
func Find(h RowHandler, key string) (int64, bool, error) {
	lo, hi := int64(0), h.Len()
	for lo < hi {
		mid := lo + (hi-lo)/2
		c, err := h.CompareKey(mid, key)
		if err != nil {
			return 0, false, err
		}
		if c < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= h.Len() {
		return 0, false, nil
	}
	c, err := h.CompareKey(lo, key)
	if err != nil {
		return 0, false, err
	}
	if c != 0 {
		return 0, false, nil
	}
	return lo, true, nil
}
