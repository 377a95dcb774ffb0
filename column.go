// Column descriptors (spec.md §4.3).
//
// The teacher encodes each document field as a Go struct tag decoded by
// goccy/go-json (record.go); there is no direct per-type-codec analogue
// in folio to imitate, so this follows the design note directly: rather
// than a type hierarchy with virtual dispatch (the C++ original's
// Abstract::Column / Column<T> template), each Column is one struct
// carrying a small `codec` interface value — a tagged variant in
// spirit, composition instead of inheritance. codec implementations
// live in column_int.go, column_string.go and column_ipv4.go.
package rowstore

import "strings"

// Type names the recognised column storage types (spec §4.3/§6).
type Type string

const (
	TypeInt32  Type = "int"
	TypeUint32 Type = "uint"
	TypeBool   Type = "bool"
	TypeIPv4   Type = "ipv4"
	TypeString Type = "string"
)

// codec is the per-storage-type logic a Column delegates to.
type codec interface {
	fixedSize() int
	save(dedup *Deduplicator, text string) (int64, error)
	less(img *Image, lCell, rCell int64) bool
	compare(img *Image, cell int64, key string) (int, error)
	toString(img *Image, cell int64) (string, error)
	isNull(cell int64) bool
}

// Column is a single schema column: name, participation in the
// composite primary key and/or a secondary index (independent flags —
// a column may be both, spec scenario 6's "net ipv4 primary index"),
// optional display layout, aliases, and the codec for its storage type.
type Column struct {
	id      int
	name    string
	typ     Type
	primary bool
	indexed bool
	aliases []string
	length  int  // display width; 0 = no fixed layout
	padChar byte // pad character when length != 0; default space

	codec codec
}

// NewColumn constructs a Column for the given type. Returns a
// SchemaError for an unrecognised type name (spec §4.3 "Unknown type
// names are a configuration error").
func NewColumn(id int, name string, typ Type, primary, indexed bool, aliases []string) (*Column, error) {
	var c codec
	switch typ {
	case TypeInt32:
		c = int32Codec{}
	case TypeUint32:
		c = uint32Codec{}
	case TypeBool:
		c = boolCodec{}
	case TypeIPv4:
		c = ipv4Codec{}
	case TypeString:
		c = stringCodec{}
	default:
		return nil, wrap(SchemaError, "column.new", unknownTypeErr{typ: string(typ)})
	}
	return &Column{
		id:      id,
		name:    name,
		typ:     typ,
		primary: primary,
		indexed: indexed,
		aliases: aliases,
		padChar: ' ',
		codec:   c,
	}, nil
}

type unknownTypeErr struct{ typ string }

func (e unknownTypeErr) Error() string { return "unknown column type: " + e.typ }

// WithLayout sets a fixed display width and pad character (zero-fill
// uses '0' per spec §4.4 "zero-fill flag becomes pad char '0'").
func (c *Column) WithLayout(length int, zeroFill bool) *Column {
	c.length = length
	c.padChar = ' '
	if zeroFill {
		c.padChar = '0'
	}
	return c
}

func (c *Column) ID() int           { return c.id }
func (c *Column) Name() string      { return c.name }
func (c *Column) Type() Type        { return c.typ }
func (c *Column) Aliases() []string { return c.aliases }
func (c *Column) IsPrimary() bool   { return c.primary }
func (c *Column) IsIndexed() bool   { return c.indexed }
func (c *Column) Formatted() bool   { return c.length != 0 }

// Matches reports whether name equals this column's name or any alias,
// case-insensitively.
func (c *Column) Matches(name string) bool {
	if strings.EqualFold(c.name, name) {
		return true
	}
	for _, a := range c.aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func (c *Column) FixedSize() int { return c.codec.fixedSize() }

// Save parses text and stores it via dedup, returning the row-table cell.
func (c *Column) Save(dedup *Deduplicator, text string) (int64, error) {
	return c.codec.save(dedup, text)
}

// Less returns whether lCell orders before rCell under this column's
// total order — used for primary-key sort and secondary-index sort.
func (c *Column) Less(img *Image, lCell, rCell int64) bool {
	return c.codec.less(img, lCell, rCell)
}

// IsNull reports whether cell is this column's zero sentinel (I2:
// secondary indexes exclude null cells).
func (c *Column) IsNull(cell int64) bool {
	return c.codec.isNull(cell)
}

// Compare performs the tri-valued prefix comparison of spec §4.3: if
// key is shorter than the column's rendered width only the leading
// portion is compared; otherwise the full column value is compared
// against the first len(column) bytes of key.
func (c *Column) Compare(img *Image, cell int64, key string) (int, error) {
	return c.codec.compare(img, cell, key)
}

// ToString renders cell for display, applying the fixed-width
// left-pad layout if one is configured (spec §4.3 "decode-to-string
// with optional left-padding layout").
func (c *Column) ToString(img *Image, cell int64) (string, error) {
	s, err := c.codec.toString(img, cell)
	if err != nil {
		return "", err
	}
	return c.applyLayout(s), nil
}

func (c *Column) applyLayout(s string) string {
	if c.length == 0 || len(s) >= c.length {
		return s
	}
	pad := strings.Repeat(string(c.padChar), c.length-len(s))
	return pad + s
}

// comparePrefix implements the shared prefix-compare rule from spec
// §4.3 against two already-rendered strings: "if len(key) < len(col)
// compare only the first len(key); if len(key) >= len(col) compare the
// full column then consume that many characters from key." It returns
// only the comparison sign; the number of key bytes consumed is not
// reported.
func comparePrefix(col, key string, sign func(a, b string) int) int {
	if len(key) < len(col) {
		return sign(col[:len(key)], key)
	}
	return sign(col, key[:len(col)])
}

func signStrings(a, b string) int {
	al, bl := strings.ToLower(a), strings.ToLower(b)
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	default:
		return 0
	}
}
