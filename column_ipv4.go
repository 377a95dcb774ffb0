// IPv4 address codec: textual "a.b.c.d", stored as a host-order u32
// cell so that numeric ordering gives ascending-IP ordering directly
// (spec §4.3), grounded on original_source's ipv4.h (inet_aton + htonl
// comparison) but idiomatic Go via net.ParseIP/net.IP.To4.
package rowstore

import (
	"fmt"
	"net"
)

type ipv4Codec struct{}

func (ipv4Codec) fixedSize() int { return 4 }

func (ipv4Codec) save(_ *Deduplicator, text string) (int64, error) {
	v, err := parseIPv4(text)
	if err != nil {
		return 0, wrap(ValueError, "column.ipv4.save", err)
	}
	return int64(v), nil
}

func parseIPv4(text string) (uint32, error) {
	ip := net.ParseIP(text)
	if ip == nil {
		return 0, fmt.Errorf("invalid IPv4 address %q", text)
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("not an IPv4 address %q", text)
	}
	return uint32(v4[0])<<24 | uint32(v4[1])<<16 | uint32(v4[2])<<8 | uint32(v4[3]), nil
}

func formatIPv4(v uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

func (ipv4Codec) less(_ *Image, lCell, rCell int64) bool {
	return uint32(lCell) < uint32(rCell)
}

func (ipv4Codec) isNull(cell int64) bool { return cell == 0 }

func (ipv4Codec) toString(_ *Image, cell int64) (string, error) {
	return formatIPv4(uint32(cell)), nil
}

// compare is textual-prefix (general column search, per spec §4.3's
// generic comparePrefix grammar). The actual longest-prefix-match
// network search (spec §4.7 "netv4") bypasses this entirely and works
// on masked numeric cells directly — see netv4.go.
func (c ipv4Codec) compare(img *Image, cell int64, key string) (int, error) {
	rendered, err := c.toString(img, cell)
	if err != nil {
		return 0, err
	}
	return comparePrefix(rendered, key, signBytes), nil
}
