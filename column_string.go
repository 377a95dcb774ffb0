// Variable-length string codec: NUL-terminated, deduplicated (spec §4.3).
package rowstore

import "strings"

type stringCodec struct{}

func (stringCodec) fixedSize() int { return 0 }

func (stringCodec) save(dedup *Deduplicator, text string) (int64, error) {
	offset, err := dedup.InsertString(text)
	if err != nil {
		return 0, err
	}
	return offset, nil
}

func (stringCodec) less(img *Image, lCell, rCell int64) bool {
	ls, _ := img.ReadPayloadString(lCell)
	rs, _ := img.ReadPayloadString(rCell)
	return strings.ToLower(ls) < strings.ToLower(rs)
}

func (stringCodec) isNull(cell int64) bool { return cell == 0 }

func (stringCodec) toString(img *Image, cell int64) (string, error) {
	if cell == 0 {
		return "", nil
	}
	return img.ReadPayloadString(cell)
}

func (c stringCodec) compare(img *Image, cell int64, key string) (int, error) {
	s, err := c.toString(img, cell)
	if err != nil {
		return 0, err
	}
	return comparePrefix(s, key, signStrings), nil
}
