// netv4: the IPv4 longest-prefix-match query engine (spec.md §4.7).
//
// Grounded on original_source/ipv4.h's QueryNetV4 (network/mask pair
// per row, longest match wins) and on column_ipv4.go's numeric cell
// representation: network and mask are stored as ordinary ipv4 columns
// so Load/Save/dedup all just work, and this file adds only the search
// algorithm on top, using the schema's secondary index on the network
// column to narrow the scan (spec: "using the indexed column to
// binary-search to the candidate region, comparing masked addresses").
package rowstore

import "sort"

// netV4Query binds a schema's network/mask columns to a longest-prefix
// search over the image's secondary index.
type netV4Query struct {
	schema  *Schema
	network *Column
	mask    *Column
	index   *Column
}

func newNetV4Query(schema *Schema, spec QuerySpec) (*netV4Query, error) {
	if spec.Type != "netv4" {
		return nil, wrap(SchemaError, "netv4.new", unsupportedQueryErr{spec.Type})
	}

	network, ok := schema.ColumnByName(spec.NetworkFrom)
	if !ok {
		return nil, wrap(SchemaError, "netv4.new", unknownQueryColumnErr{"network-from", spec.NetworkFrom})
	}
	mask, ok := schema.ColumnByName(spec.MaskFrom)
	if !ok {
		return nil, wrap(SchemaError, "netv4.new", unknownQueryColumnErr{"mask-from", spec.MaskFrom})
	}
	idxName := spec.IndexColumn
	if idxName == "" {
		idxName = spec.NetworkFrom
	}
	index, ok := schema.ColumnByName(idxName)
	if !ok {
		return nil, wrap(SchemaError, "netv4.new", unknownQueryColumnErr{"index", idxName})
	}
	if network.Type() != TypeIPv4 || mask.Type() != TypeIPv4 {
		return nil, wrap(SchemaError, "netv4.new", wrongQueryTypeErr{})
	}
	if !index.IsIndexed() {
		return nil, wrap(SchemaError, "netv4.new", notIndexedErr{index.Name()})
	}

	return &netV4Query{schema: schema, network: network, mask: mask, index: index}, nil
}

type unsupportedQueryErr struct{ kind string }

func (e unsupportedQueryErr) Error() string { return "unsupported search-engine: " + e.kind }

type unknownQueryColumnErr struct{ field, name string }

func (e unknownQueryColumnErr) Error() string {
	return "netv4 query " + e.field + " references unknown column: " + e.name
}

type wrongQueryTypeErr struct{}

func (wrongQueryTypeErr) Error() string { return "netv4 network-from/mask-from must both be ipv4 columns" }

type notIndexedErr struct{ name string }

func (e notIndexedErr) Error() string { return "netv4 index column is not a secondary index: " + e.name }

// Lookup performs the longest-prefix match of q against img, returning
// the matching row's byte offset and true, or false if no (network,
// mask) row covers q.
func (nq *netV4Query) Lookup(img *Image, q uint32) (int64, bool, error) {
	offsets, err := img.SecondaryIndex(nq.index.ID())
	if err != nil {
		return 0, false, err
	}
	if len(offsets) == 0 {
		return 0, false, nil
	}

	cols := nq.schema.Columns()
	networkAt := func(i int) uint32 {
		cells, err := img.cellsAtOffset(offsets[i], int64(len(cols)))
		if err != nil {
			return 0
		}
		return uint32(cells[nq.index.ID()])
	}

	// the index is sorted ascending by the index column's value; every
	// matching entry's network base is <= q (a CIDR network address is
	// always the lowest address in its range), so start the scan at the
	// rightmost entry whose indexed value is <= q.
	start := sort.Search(len(offsets), func(i int) bool { return networkAt(i) > q })

	var (
		bestOffset int64
		bestMask   uint32
		found      bool
	)

	for i := start - 1; i >= 0; i-- {
		cells, err := img.cellsAtOffset(offsets[i], int64(len(cols)))
		if err != nil {
			return 0, false, err
		}
		network := uint32(cells[nq.network.ID()])
		mask := uint32(cells[nq.mask.ID()])
		if mask == 0 {
			continue
		}
		if network&mask == q&mask {
			if !found || mask > bestMask {
				bestOffset = offsets[i]
				bestMask = mask
				found = true
			}
		}
	}

	return bestOffset, found, nil
}
