// Schema descriptor parsing and the Container type (spec.md §4.4).
//
// Descriptor is the structural form a host hands the engine (spec §6);
// it is decoded with goccy/go-json, the teacher's JSON library of
// choice (folio's header.go/record.go), whether the host's own config
// format is JSON directly or it simply re-marshals from XML/YAML
// upstream of this package (spec §1 keeps "XML configuration parsing
// of unrelated attributes" an external concern).
package rowstore

import (
	"regexp"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
)

// ColumnSpec is one column's entry in a Descriptor.
type ColumnSpec struct {
	Name     string   `json:"name"`
	Type     Type     `json:"type"`
	Primary  bool     `json:"primary"`
	Index    bool     `json:"index"`
	Length   int      `json:"length"`
	ZeroFill bool     `json:"zero-fill"`
	Aliases  []string `json:"aliases"`
}

// QuerySpec declares a domain-specific query engine binding, currently
// only "netv4" (spec §4.7/§6).
type QuerySpec struct {
	Type         string `json:"search-engine"`
	NetworkFrom  string `json:"network-from"`
	MaskFrom     string `json:"mask-from"`
	IndexColumn  string `json:"index"`
}

// Descriptor is the schema descriptor a host supplies (spec §6).
type Descriptor struct {
	Name              string       `json:"name"`
	SourcesFrom       string       `json:"sources-from"`
	SourcesFileFilter string       `json:"sources-file-filter"`
	ExpiresSeconds    int          `json:"expires"`
	Columns           []ColumnSpec `json:"columns"`
	Queries           []QuerySpec  `json:"queries"`
	// HashAlgorithm selects the Deduplicator's confirmation hash
	// ("fnv1a" default, "xxh3", or "blake2b"), mirroring the teacher's
	// Config.HashAlgorithm (hash.go).
	HashAlgorithm string `json:"hash-algorithm"`
}

// ParseDescriptor decodes a JSON schema descriptor.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, wrap(SchemaError, "descriptor.parse", err)
	}
	return &d, nil
}

// Schema is the immutable, parsed form of a Descriptor (spec §3).
type Schema struct {
	name      string
	path      string
	filespec  *regexp.Regexp
	columns   []*Column
	primary   []*Column
	indexed   []*Column
	byName    map[string]*Column
	queries   []*netV4Query
	hashAlg   DedupAlgorithm
}

// NewSchema validates and builds a Schema from a Descriptor.
func NewSchema(d *Descriptor) (*Schema, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, wrap(SchemaError, "schema.new", emptyFieldErr{"name"})
	}
	if strings.TrimSpace(d.SourcesFrom) == "" {
		return nil, wrap(SchemaError, "schema.new", emptyFieldErr{"sources-from"})
	}

	filterPattern := d.SourcesFileFilter
	if filterPattern == "" {
		filterPattern = ".*"
	}
	filespec, err := regexp.Compile(filterPattern)
	if err != nil {
		return nil, wrap(SchemaError, "schema.new", err)
	}
	hashAlg, err := parseHashAlgorithm(d.HashAlgorithm)
	if err != nil {
		return nil, wrap(SchemaError, "schema.new", err)
	}

	s := &Schema{
		name:     d.Name,
		path:     d.SourcesFrom,
		filespec: filespec,
		byName:   make(map[string]*Column),
		hashAlg:  hashAlg,
	}

	for i, cs := range d.Columns {
		if _, exists := s.byName[strings.ToLower(cs.Name)]; exists {
			return nil, wrap(SchemaError, "schema.new", duplicateColumnErr{name: cs.Name})
		}
		col, err := NewColumn(i, cs.Name, cs.Type, cs.Primary, cs.Index, cs.Aliases)
		if err != nil {
			return nil, err
		}
		if cs.Length > 0 {
			col.WithLayout(cs.Length, cs.ZeroFill)
		}
		s.columns = append(s.columns, col)
		s.byName[strings.ToLower(cs.Name)] = col
		for _, a := range cs.Aliases {
			s.byName[strings.ToLower(a)] = col
		}
		if col.IsPrimary() {
			s.primary = append(s.primary, col)
		}
		if col.IsIndexed() {
			s.indexed = append(s.indexed, col)
		}
	}

	if len(s.primary) == 0 {
		return nil, wrap(SchemaError, "schema.new", noPrimaryErr{})
	}

	for _, qs := range d.Queries {
		q, err := newNetV4Query(s, qs)
		if err != nil {
			return nil, err
		}
		s.queries = append(s.queries, q)
	}

	return s, nil
}

type emptyFieldErr struct{ field string }

func (e emptyFieldErr) Error() string { return "required field is empty: " + e.field }

type duplicateColumnErr struct{ name string }

func (e duplicateColumnErr) Error() string { return "duplicate column name: " + e.name }

type noPrimaryErr struct{}

func (noPrimaryErr) Error() string { return "schema must contain at least one primary column" }

// Columns returns the ordered column list.
func (s *Schema) Columns() []*Column { return s.columns }

// Primary returns the composite primary-key columns, in schema order.
func (s *Schema) Primary() []*Column { return s.primary }

// Indexed returns the secondary-index columns.
func (s *Schema) Indexed() []*Column { return s.indexed }

// ColumnByName looks up a column by name or alias, case-insensitively.
func (s *Schema) ColumnByName(name string) (*Column, bool) {
	c, ok := s.byName[strings.ToLower(name)]
	return c, ok
}

// Queries returns the schema's configured domain-specific query
// engines (currently only netv4), in descriptor order.
func (s *Schema) Queries() []*netV4Query { return s.queries }

// HashAlgorithm returns the Deduplicator confirmation hash this
// schema's descriptor selected (spec §4.2, "hash-algorithm").
func (s *Schema) HashAlgorithm() DedupAlgorithm { return s.hashAlg }

// Container owns a Schema and the currently active Image for it (spec §4.4).
type Container struct {
	schema *Schema

	mu      sync.RWMutex
	active  *Image
	loading bool
}

// NewContainer constructs a Container with no active image yet.
func NewContainer(schema *Schema) *Container {
	return &Container{schema: schema}
}

func (c *Container) Name() string   { return c.schema.name }
func (c *Container) Schema() *Schema { return c.schema }

// Active returns the currently active image, or nil if none has been
// loaded yet. The returned image's reference count is incremented;
// callers must call release when done (mirrors Image.acquire/release).
func (c *Container) Active() *Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return nil
	}
	c.active.acquire()
	return c.active
}

// Count returns the row count of the active image, or 0 if empty.
func (c *Container) Count() int64 {
	img := c.Active()
	if img == nil {
		return 0
	}
	defer img.release()
	return img.RowCount()
}

// publish atomically swaps in a newly built image, retiring the
// previous one (spec §3 "Lifecycle" / §5 "single pointer/handle swap").
func (c *Container) publish(img *Image) {
	c.mu.Lock()
	old := c.active
	c.active = img
	c.mu.Unlock()
	if old != nil {
		old.retire()
	}
}

// beginLoad marks the container as rebuilding, returning
// ErrAlreadyLoading if a rebuild is already in flight (spec §7:
// "Concurrent rebuild attempts return immediately with a warning
// rather than queuing").
func (c *Container) beginLoad() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loading {
		return ErrAlreadyLoading
	}
	c.loading = true
	return nil
}

func (c *Container) endLoad() {
	c.mu.Lock()
	c.loading = false
	c.mu.Unlock()
}
