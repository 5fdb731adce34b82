package scrape

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf16"

	"github.com/PuerkitoBio/goquery"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// ParseDocument parses an HTML page
func ParseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing html: %v", domain.ErrInvalidResponse, err)
	}
	return doc, nil
}

// FirstText returns the trimmed text of the first element matching any of
// the comma separated selectors
func FirstText(s *goquery.Selection, selectors string) string {
	return strings.TrimSpace(s.Find(selectors).First().Text())
}

// FirstAttr returns an attribute of the first element matching selectors
func FirstAttr(s *goquery.Selection, selectors, attr string) string {
	value, _ := s.Find(selectors).First().Attr(attr)
	return strings.TrimSpace(value)
}

// ResolveURL makes href absolute against base. Empty hrefs resolve to base.
func ResolveURL(base, href string) string {
	if href == "" {
		return base
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	b, err := url.Parse(base)
	if err != nil {
		return base + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return base + href
	}
	return b.ResolveReference(ref).String()
}

// HashID derives a stable product id from a title for platforms that expose
// no identifier, e.g. idealo_1234567
func HashID(prefix, title string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(title)) {
		h = (h << 5) - h + int32(unit)
	}
	n := int64(h)
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%s_%d", prefix, n)
}
