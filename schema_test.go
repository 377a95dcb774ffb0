// Schema validation tests: required fields, duplicate columns, the
// no-primary-column rule, and descriptor JSON decoding.
package rowstore

import "testing"

func TestParseDescriptorJSON(t *testing.T) {
	data := []byte(`{
		"name": "db",
		"sources-from": "/tmp/x",
		"columns": [
			{"name": "id", "type": "uint", "primary": true}
		]
	}`)
	d, err := ParseDescriptor(data)
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if d.Name != "db" || d.SourcesFrom != "/tmp/x" || len(d.Columns) != 1 {
		t.Errorf("decoded descriptor = %+v", d)
	}
}

func TestSchemaRequiresName(t *testing.T) {
	_, err := NewSchema(&Descriptor{SourcesFrom: "/tmp"})
	if !Is(err, SchemaError) {
		t.Errorf("NewSchema missing name = %v, want SchemaError", err)
	}
}

func TestSchemaRequiresPrimaryColumn(t *testing.T) {
	_, err := NewSchema(&Descriptor{
		Name:        "db",
		SourcesFrom: "/tmp",
		Columns:     []ColumnSpec{{Name: "x", Type: TypeString}},
	})
	if !Is(err, SchemaError) {
		t.Errorf("NewSchema with no primary = %v, want SchemaError", err)
	}
}

func TestSchemaRejectsDuplicateColumnNames(t *testing.T) {
	_, err := NewSchema(&Descriptor{
		Name:        "db",
		SourcesFrom: "/tmp",
		Columns: []ColumnSpec{
			{Name: "x", Type: TypeString, Primary: true},
			{Name: "x", Type: TypeString},
		},
	})
	if !Is(err, SchemaError) {
		t.Errorf("NewSchema with duplicate column = %v, want SchemaError", err)
	}
}

func TestRegistryLookupCaseInsensitive(t *testing.T) {
	schema, err := NewSchema(&Descriptor{
		Name:        "DB",
		SourcesFrom: "/tmp",
		Columns:     []ColumnSpec{{Name: "id", Type: TypeUint32, Primary: true}},
	})
	if err != nil {
		t.Fatalf("NewSchema: %v", err)
	}
	registry := NewRegistry()
	registry.Register(NewContainer(schema))

	if _, ok := registry.Lookup("db"); !ok {
		t.Error("expected case-insensitive lookup to find container registered as DB")
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Error("expected lookup of unknown name to fail")
	}
}
