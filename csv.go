// CSV dialect parser (spec.md §4.5).
//
// Delimiter defaults to ';'; a field that begins with '"' is quoted and
// terminated by the next '"' (no embedded-quote escape, matching the
// source); whitespace immediately after a delimiter is skipped. A
// missing closing quote is a ParseError. Grounded on the teacher's
// line-oriented reading idiom (read.go's line()/bufio use) but the
// field splitter itself is bespoke since folio has no CSV dialect.
package rowstore

import (
	"bufio"
	"io"
	"strings"
)

const defaultDelimiter = ';'

// csvReader reads delimiter-separated records one line at a time.
type csvReader struct {
	scanner   *bufio.Scanner
	delimiter byte
}

func newCSVReader(r io.Reader) *csvReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &csvReader{scanner: scanner, delimiter: defaultDelimiter}
}

// readRecord returns the next line split into fields (a blank line
// comes back as a record of empty fields), io.EOF at end of input, or
// a ParseError on an unterminated quote. It does NOT itself implement the "stop at first empty line"
// rule — callers decide that (spec §4.5 step 3), since it differs
// between the header row and data rows.
func (r *csvReader) readRecord() ([]string, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, wrap(IoError, "csv.read", err)
		}
		return nil, io.EOF
	}
	line := r.scanner.Text()
	return splitRecord(line, r.delimiter)
}

func splitRecord(line string, delim byte) ([]string, error) {
	var fields []string
	i := 0
	n := len(line)

	for {
		for i < n && (line[i] == ' ' || line[i] == '\t') {
			i++
		}

		var field string
		if i < n && line[i] == '"' {
			i++
			start := i
			for i < n && line[i] != '"' {
				i++
			}
			if i >= n {
				return nil, wrap(ParseError, "csv.split", unterminatedQuoteErr{})
			}
			field = line[start:i]
			i++ // consume closing quote
		} else {
			start := i
			for i < n && line[i] != delim {
				i++
			}
			field = strings.TrimSpace(line[start:i])
		}

		fields = append(fields, field)

		if i >= n {
			break
		}
		if line[i] == delim {
			i++
			continue
		}
		// trailing garbage after a closing quote before the delimiter;
		// skip to the next delimiter
		for i < n && line[i] != delim {
			i++
		}
		if i < n {
			i++
			continue
		}
		break
	}

	return fields, nil
}

type unterminatedQuoteErr struct{}

func (unterminatedQuoteErr) Error() string { return "unterminated quoted field" }

// allBlank reports whether every field in a record is empty after
// trimming — the loader's "skip/stop on empty row" trigger (spec §4.5).
func allBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
