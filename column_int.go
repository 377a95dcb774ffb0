// Fixed-width scalar codecs: signed/unsigned 32-bit integers and bool.
//
// Per spec §4.3, the row-table cell for these types IS the value
// itself (no deduplicator involvement, no arena indirection) — the
// "cell aliasing" trick from the design notes, implemented here simply
// by storing the numeric value directly in the int64 cell word.
package rowstore

import "strconv"

type int32Codec struct{}

func (int32Codec) fixedSize() int { return 4 }

func (int32Codec) save(_ *Deduplicator, text string) (int64, error) {
	v, err := strconv.ParseInt(text, 10, 32)
	if err != nil {
		return 0, wrap(ValueError, "column.int32.save", err)
	}
	return v, nil
}

func (int32Codec) less(_ *Image, lCell, rCell int64) bool {
	return int32(lCell) < int32(rCell)
}

func (int32Codec) isNull(cell int64) bool { return cell == 0 }

func (c int32Codec) toString(_ *Image, cell int64) (string, error) {
	return strconv.FormatInt(int64(int32(cell)), 10), nil
}

func (c int32Codec) compare(img *Image, cell int64, key string) (int, error) {
	rendered, err := c.toString(img, cell)
	if err != nil {
		return 0, err
	}
	return comparePrefix(rendered, key, signBytes), nil
}

type uint32Codec struct{}

func (uint32Codec) fixedSize() int { return 4 }

func (uint32Codec) save(_ *Deduplicator, text string) (int64, error) {
	v, err := strconv.ParseUint(text, 10, 32)
	if err != nil {
		return 0, wrap(ValueError, "column.uint32.save", err)
	}
	return int64(v), nil
}

func (uint32Codec) less(_ *Image, lCell, rCell int64) bool {
	return uint32(lCell) < uint32(rCell)
}

func (uint32Codec) isNull(cell int64) bool { return cell == 0 }

func (c uint32Codec) toString(_ *Image, cell int64) (string, error) {
	return strconv.FormatUint(uint64(uint32(cell)), 10), nil
}

func (c uint32Codec) compare(img *Image, cell int64, key string) (int, error) {
	rendered, err := c.toString(img, cell)
	if err != nil {
		return 0, err
	}
	return comparePrefix(rendered, key, signBytes), nil
}

type boolCodec struct{}

func (boolCodec) fixedSize() int { return 1 }

func (boolCodec) save(_ *Deduplicator, text string) (int64, error) {
	v, err := strconv.ParseBool(text)
	if err != nil {
		return 0, wrap(ValueError, "column.bool.save", err)
	}
	if v {
		return 1, nil
	}
	return 0, nil
}

func (boolCodec) less(_ *Image, lCell, rCell int64) bool {
	return lCell < rCell
}

func (boolCodec) isNull(cell int64) bool { return cell == 0 }

func (boolCodec) toString(_ *Image, cell int64) (string, error) {
	if cell != 0 {
		return "true", nil
	}
	return "false", nil
}

func (c boolCodec) compare(img *Image, cell int64, key string) (int, error) {
	rendered, err := c.toString(img, cell)
	if err != nil {
		return 0, err
	}
	return comparePrefix(rendered, key, signStrings), nil
}

func signBytes(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
