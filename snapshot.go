// Snapshot export/import: a zstd-compressed copy of a built image file,
// for shipping a warm image between processes without re-running the
// loader (an additive feature; spec.md's scenarios never exercise this,
// see SPEC_FULL.md §4.4).
//
// klauspost/compress is the teacher's compression dependency (folio's
// compress.go, used there for record-value compression); the same
// library's zstd encoder/decoder is used here over the whole image
// file instead of per-record.
package rowstore

import (
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// ExportSnapshot writes a zstd-compressed copy of img's backing file to w.
func ExportSnapshot(img *Image, w io.Writer) error {
	size := img.blob.Size()
	raw, err := img.blob.Read(0, int(size))
	if err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w)
	if err != nil {
		return wrap(IoError, "snapshot.export", err)
	}
	if _, err := enc.Write(raw); err != nil {
		enc.Close()
		return wrap(IoError, "snapshot.export", err)
	}
	if err := enc.Close(); err != nil {
		return wrap(IoError, "snapshot.export", err)
	}
	return nil
}

// ImportSnapshot decompresses r into a fresh file at destPath and opens
// it as an Image. destPath's directory must already exist.
func ImportSnapshot(r io.Reader, destPath string) (*Image, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, wrap(IoError, "snapshot.import", err)
	}
	defer dec.Close()

	f, err := os.OpenFile(destPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, wrap(IoError, "snapshot.import", err)
	}
	if _, err := io.Copy(f, dec); err != nil {
		f.Close()
		return nil, wrap(IoError, "snapshot.import", err)
	}
	f.Close()

	return openImage(destPath)
}
