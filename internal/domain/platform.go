package domain

import (
	"fmt"
	"strings"
)

// Platform identifies a marketplace or price comparison site
type Platform string

const (
	PlatformAmazon     Platform = "amazon"
	PlatformEbay       Platform = "ebay"
	PlatformIdealo     Platform = "idealo"
	PlatformGeizhals   Platform = "geizhals"
	PlatformCheck24    Platform = "check24"
	PlatformOtto       Platform = "otto"
	PlatformMediaMarkt Platform = "mediamarkt"
	PlatformSaturn     Platform = "saturn"
	PlatformOther      Platform = "other"
)

type platformInfo struct {
	name  string
	color string
}

// platformOrder fixes the order of series in exports.
var platformOrder = []Platform{
	PlatformAmazon,
	PlatformEbay,
	PlatformIdealo,
	PlatformGeizhals,
	PlatformCheck24,
	PlatformOtto,
	PlatformMediaMarkt,
	PlatformSaturn,
	PlatformOther,
}

var platformCatalog = map[Platform]platformInfo{
	PlatformAmazon:     {name: "Amazon", color: "#FF9900"},
	PlatformEbay:       {name: "eBay", color: "#E53238"},
	PlatformIdealo:     {name: "Idealo", color: "#0066CC"},
	PlatformGeizhals:   {name: "Geizhals", color: "#1E3A5F"},
	PlatformCheck24:    {name: "Check24", color: "#063773"},
	PlatformOtto:       {name: "Otto", color: "#C41230"},
	PlatformMediaMarkt: {name: "MediaMarkt", color: "#DF0000"},
	PlatformSaturn:     {name: "Saturn", color: "#004F9F"},
	PlatformOther:      {name: "Other", color: "#6B7280"},
}

// AllPlatforms returns every known platform in export order
func AllPlatforms() []Platform {
	out := make([]Platform, len(platformOrder))
	copy(out, platformOrder)
	return out
}

// ParsePlatform converts a string into a known platform
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("unknown platform %q", s)
	}
	return p, nil
}

// Valid reports whether p is a known platform
func (p Platform) Valid() bool {
	_, ok := platformCatalog[p]
	return ok
}

// DisplayName returns the human readable platform name
func (p Platform) DisplayName() string {
	if info, ok := platformCatalog[p]; ok {
		return info.name
	}
	return string(p)
}

// Color returns the chart color used for the platform series
func (p Platform) Color() string {
	if info, ok := platformCatalog[p]; ok {
		return info.color
	}
	return platformCatalog[PlatformOther].color
}

// Rank returns the export position of the platform. Unknown platforms sort last.
func (p Platform) Rank() int {
	for i, known := range platformOrder {
		if known == p {
			return i
		}
	}
	return len(platformOrder)
}

func (p Platform) String() string {
	return string(p)
}
