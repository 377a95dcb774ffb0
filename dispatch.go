// Query dispatcher: resolves a request path against a Registry and
// drives a ResponseSink (spec.md §4.7, grammar in §6).
package rowstore

import (
	"strconv"
	"strings"
)

// Dispatcher resolves "/<container>/<rest>" request paths.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher binds a dispatcher to a registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch resolves path and drives sink with the result. Per spec §7,
// "key not found" and "empty container" surface as an empty result
// (sink.SetCount(0)), not as an error; only structural errors (unknown
// container, malformed syntax) are returned.
func (d *Dispatcher) Dispatch(rawPath string, sink ResponseSink) error {
	path := strings.TrimLeft(rawPath, "/")
	if path == "" {
		return wrap(NotFound, "dispatch", emptyPathErr{})
	}

	parts := strings.SplitN(path, "/", 2)
	name := parts[0]
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}

	container, ok := d.registry.Lookup(name)
	if !ok {
		return wrap(NotFound, "dispatch", containerNotFoundErr{name})
	}

	img := container.Active()
	if img == nil {
		sink.SetCount(0)
		return nil
	}
	defer img.release()

	sink.SetLastModified(img.LastModified())

	return d.resolve(img, container.Schema(), rest, nil, sink)
}

type emptyPathErr struct{}

func (emptyPathErr) Error() string { return "empty request path" }

type containerNotFoundErr struct{ name string }

func (e containerNotFoundErr) Error() string { return "no such container: " + e.name }

func (d *Dispatcher) resolve(img *Image, schema *Schema, rest string, scope *Column, sink ResponseSink) error {
	if strings.HasPrefix(rest, "row/") {
		return d.rowLookup(img, schema, rest[len("row/"):], sink)
	}
	if strings.HasPrefix(rest, "contains/") {
		needle := strings.ToLower(rest[len("contains/"):])
		return d.scanContains(img, schema, needle, scope, sink)
	}

	if scope == nil {
		candidate := rest
		remainder := ""
		if idx := strings.IndexByte(rest, '/'); idx >= 0 {
			candidate, remainder = rest[:idx], rest[idx+1:]
		}
		if col, ok := schema.ColumnByName(candidate); ok && col.IsIndexed() {
			if remainder == "" {
				return d.columnSearch(img, schema, col, "", sink)
			}
			return d.resolve(img, schema, remainder, col, sink)
		}
		if remainder == "" {
			if handled, err := d.netV4Search(img, schema, rest, sink); handled {
				return err
			}
		}
	}

	if scope != nil {
		return d.columnSearch(img, schema, scope, rest, sink)
	}

	return d.primarySearch(img, schema, rest, sink)
}

func (d *Dispatcher) rowLookup(img *Image, schema *Schema, numText string, sink ResponseSink) error {
	n, err := strconv.ParseInt(numText, 10, 64)
	if err != nil {
		return wrap(ParseError, "dispatch.row", err)
	}
	ord := n - 1
	h := NewPrimaryKeyHandler(img, schema.Primary())
	if ord < 0 || ord >= h.Len() {
		sink.SetCount(0)
		return nil
	}
	it := NewIterator(img, h)
	defer it.Close()
	it.Seek(ord)
	key, err := it.PrimaryKeyText(schema.Primary())
	if err != nil {
		return err
	}
	sink.Set("primary_key", key)
	return emitRows(it, schema, 1, sink)
}

// netV4Search routes text through the schema's configured netv4 query
// engines (spec §4.7) when it parses as an IPv4 literal. handled is
// true whenever a configured query claimed the segment, whether or not
// it found a matching network — in that case err is the final result
// of Dispatch and the caller must not fall through to primarySearch.
func (d *Dispatcher) netV4Search(img *Image, schema *Schema, text string, sink ResponseSink) (handled bool, err error) {
	queries := schema.Queries()
	if len(queries) == 0 {
		return false, nil
	}
	addr, parseErr := parseIPv4(text)
	if parseErr != nil {
		return false, nil
	}
	for _, q := range queries {
		offset, ok, err := q.Lookup(img, addr)
		if err != nil {
			return true, err
		}
		if !ok {
			continue
		}
		cells, err := img.cellsAtOffset(offset, img.ColumnCount())
		if err != nil {
			return true, err
		}
		return true, emitSingleRow(schema, img, cells, sink)
	}
	sink.SetCount(0)
	return true, nil
}

func (d *Dispatcher) primarySearch(img *Image, schema *Schema, key string, sink ResponseSink) error {
	h := NewPrimaryKeyHandler(img, schema.Primary())
	pos, ok, err := Find(h, key)
	if err != nil {
		return err
	}
	if !ok {
		sink.SetCount(0)
		return nil
	}
	it := NewIterator(img, h)
	defer it.Close()
	it.Seek(pos)
	n, err := it.Count(key)
	if err != nil {
		return err
	}
	return emitRows(it, schema, n, sink)
}

func (d *Dispatcher) columnSearch(img *Image, schema *Schema, col *Column, key string, sink ResponseSink) error {
	h, err := NewColumnKeyHandler(img, col)
	if err != nil {
		return err
	}
	pos, ok, err := Find(h, key)
	if err != nil {
		return err
	}
	if !ok {
		sink.SetCount(0)
		return nil
	}
	it := NewIterator(img, h)
	defer it.Close()
	it.Seek(pos)
	n, err := it.Count(key)
	if err != nil {
		return err
	}
	return emitRows(it, schema, n, sink)
}

func (d *Dispatcher) scanContains(img *Image, schema *Schema, needle string, scope *Column, sink ResponseSink) error {
	cols := schema.Columns()
	if scope != nil {
		cols = []*Column{scope}
	}

	full := NewPrimaryKeyHandler(img, schema.Primary())
	var offsets []int64
	for row := int64(0); row < full.Len(); row++ {
		cells, err := img.cellsAtOffset(img.rowOffset(row), img.ColumnCount())
		if err != nil {
			return err
		}
		matched := false
		for _, col := range cols {
			rendered, err := col.ToString(img, cells[col.ID()])
			if err != nil {
				return err
			}
			if strings.Contains(strings.ToLower(rendered), needle) {
				matched = true
				break
			}
		}
		if matched {
			offsets = append(offsets, img.rowOffset(row))
		}
	}

	// CustomKeyHandler: "filter always returns equal" (spec §4.6) since
	// membership was already decided by the scan above.
	h := NewCustomKeyHandler(int64(len(offsets)),
		func(pos int64) int64 { return offsets[pos] },
		func(int64, string) (int, error) { return 0, nil },
	)
	it := NewIterator(img, h)
	defer it.Close()
	return emitRows(it, schema, int64(len(offsets)), sink)
}

// emitSingleRow writes one already-resolved row's cells to sink — used
// by netV4Search, whose match comes from netV4Query.Lookup rather than
// a RowHandler-bisectable sequence an Iterator could walk.
func emitSingleRow(schema *Schema, img *Image, cells []int64, sink ResponseSink) error {
	sink.SetCount(1)
	names := make([]string, len(schema.Columns()))
	for i, col := range schema.Columns() {
		names[i] = col.Name()
	}
	sink.Begin(names)
	for _, col := range schema.Columns() {
		s, err := col.ToString(img, cells[col.ID()])
		if err != nil {
			return err
		}
		sink.Push(s)
	}
	return nil
}

func emitRows(it *Iterator, schema *Schema, count int64, sink ResponseSink) error {
	sink.SetCount(count)

	names := make([]string, len(schema.Columns()))
	for i, col := range schema.Columns() {
		names[i] = col.Name()
	}
	sink.Begin(names)

	for i := int64(0); i < count; i++ {
		cells, err := it.Cells()
		if err != nil {
			return err
		}
		for _, col := range schema.Columns() {
			s, err := col.ToString(it.img, cells[col.ID()])
			if err != nil {
				return err
			}
			sink.Push(s)
		}
		it.Next()
	}
	return nil
}
