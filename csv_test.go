// CSV dialect parser tests (spec §4.5): delimiter, quoting, and the
// unterminated-quote parse error.
package rowstore

import "testing"

func TestSplitRecordBasic(t *testing.T) {
	fields, err := splitRecord("1;alice;42", ';')
	if err != nil {
		t.Fatalf("splitRecord: %v", err)
	}
	want := []string{"1", "alice", "42"}
	if len(fields) != len(want) {
		t.Fatalf("fields = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %q, want %q", i, fields[i], want[i])
		}
	}
}

func TestSplitRecordQuoted(t *testing.T) {
	fields, err := splitRecord(`1;"hello world";3`, ';')
	if err != nil {
		t.Fatalf("splitRecord: %v", err)
	}
	if fields[1] != "hello world" {
		t.Errorf("quoted field = %q, want %q", fields[1], "hello world")
	}
}

func TestSplitRecordSkipsWhitespaceAfterDelimiter(t *testing.T) {
	fields, err := splitRecord("1;  alice;42", ';')
	if err != nil {
		t.Fatalf("splitRecord: %v", err)
	}
	if fields[1] != "alice" {
		t.Errorf("field = %q, want alice", fields[1])
	}
}

func TestSplitRecordUnterminatedQuoteIsParseError(t *testing.T) {
	_, err := splitRecord(`1;"unterminated;3`, ';')
	if !Is(err, ParseError) {
		t.Errorf("splitRecord unterminated quote = %v, want ParseError", err)
	}
}

func TestAllBlank(t *testing.T) {
	if !allBlank([]string{"", "  ", ""}) {
		t.Error("expected all-blank row to be detected")
	}
	if allBlank([]string{"", "x", ""}) {
		t.Error("row with one non-blank field should not be all-blank")
	}
}
