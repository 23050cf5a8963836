package enrichment

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"sort"
	"strings"
)

// GeoIPEnricher maps public addresses to ISO country codes using a
// prefix table loaded from "cidr,country" lines. Without a table every
// lookup misses.
type GeoIPEnricher struct {
	prefixes []countryPrefix
}

type countryPrefix struct {
	prefix  netip.Prefix
	country string
}

func NewGeoIPEnricher() *GeoIPEnricher {
	return &GeoIPEnricher{}
}

// LoadGeoIPFile reads a table from path. An empty path yields an empty enricher.
func LoadGeoIPFile(path string) (*GeoIPEnricher, error) {
	if path == "" {
		return NewGeoIPEnricher(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip table: %w", err)
	}
	defer f.Close()
	return ParseGeoIP(f)
}

// ParseGeoIP reads "cidr,country" lines; blank lines and # comments are skipped.
func ParseGeoIP(r io.Reader) (*GeoIPEnricher, error) {
	g := &GeoIPEnricher{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		cidr, country, ok := strings.Cut(text, ",")
		if !ok {
			return nil, fmt.Errorf("geoip line %d: expected cidr,country", line)
		}
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			return nil, fmt.Errorf("geoip line %d: %w", line, err)
		}
		g.prefixes = append(g.prefixes, countryPrefix{
			prefix:  prefix.Masked(),
			country: strings.ToUpper(strings.TrimSpace(country)),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read geoip table: %w", err)
	}

	// Most specific prefix wins.
	sort.SliceStable(g.prefixes, func(i, j int) bool {
		return g.prefixes[i].prefix.Bits() > g.prefixes[j].prefix.Bits()
	})
	return g, nil
}

// Country returns the country code for ip, or "" for unknown, loopback and private addresses.
func (g *GeoIPEnricher) Country(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return ""
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast() {
		return ""
	}
	for _, p := range g.prefixes {
		if p.prefix.Contains(addr) {
			return p.country
		}
	}
	return ""
}

// ResolveCountry prefers an edge-provided country header over the table.
func (g *GeoIPEnricher) ResolveCountry(headerCountry, ip string) string {
	if c := strings.ToUpper(strings.TrimSpace(headerCountry)); len(c) == 2 && c != "XX" {
		return c
	}
	return g.Country(ip)
}
