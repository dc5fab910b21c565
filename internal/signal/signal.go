// Package signal classifies scan records into typed evidence with a fixed tier.
package signal

import (
	"cmp"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Tier is the evidentiary strength of a signal type. Lower values are stronger.
type Tier int

const (
	// SmokingGun values are definitive: one shared value links two domains.
	SmokingGun Tier = iota
	// Strong values make a link likely when two or more are shared.
	Strong
	// Weak values are supporting context only.
	Weak
)

// Tiers lists every tier from strongest to weakest.
var Tiers = []Tier{SmokingGun, Strong, Weak}

func (t Tier) String() string {
	switch t {
	case SmokingGun:
		return "SMOKING_GUN"
	case Strong:
		return "STRONG"
	case Weak:
		return "WEAK"
	default:
		return fmt.Sprintf("Tier(%d)", int(t))
	}
}

// ParseTier accepts smoking_gun, strong or weak in any case.
func ParseTier(s string) (Tier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smoking_gun", "smoking-gun", "smokinggun":
		return SmokingGun, nil
	case "strong":
		return Strong, nil
	case "weak":
		return Weak, nil
	default:
		return 0, fmt.Errorf("unknown tier %q", s)
	}
}

// Type names a kind of identifier. Rulesets may declare types beyond the
// built-in ones below.
type Type string

// Built-in signal types.
const (
	TypeGoogleAnalytics        Type = "google_analytics"
	TypeAdSense                Type = "adsense"
	TypeFacebookPixel          Type = "facebook_pixel"
	TypeEmail                  Type = "email"
	TypeSSLFingerprint         Type = "ssl_fingerprint"
	TypeGoogleSiteVerification Type = "google_site_verification"
	TypeAtlassianVerification  Type = "atlassian_verification"
	TypeWhoisRegistrant        Type = "whois_registrant"
	TypePhone                  Type = "phone"
	TypeNameserver             Type = "nameserver"
	TypeIPAddress              Type = "ip_address"
	TypeCryptoAddress          Type = "crypto_address"
	TypeHostingProvider        Type = "hosting_provider"
	TypeCountry                Type = "country"
	TypeCMS                    Type = "cms"
)

// Signal is one piece of classified evidence. It is a value type and is
// never modified after classification.
type Signal struct {
	Domain     string
	Type       Type
	Tier       Tier
	Value      string // as extracted
	Normalized string // comparison form, see Normalize
	Module     string // upstream module, empty when unknown
}

// Key identifies signals that collapse into one piece of evidence.
type Key struct {
	Type       Type
	Normalized string
}

// Key returns the collapse key of s.
func (s Signal) Key() Key {
	return Key{Type: s.Type, Normalized: s.Normalized}
}

// Normalize trims s, collapses internal whitespace runs to one space and
// applies Unicode case folding.
func Normalize(s string) string {
	collapsed := strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(collapsed)
}

// Compare orders signals by tier, type, normalized value, domain and raw
// value. It returns -1, 0 or +1.
func Compare(a, b Signal) int {
	switch {
	case a.Tier != b.Tier:
		return cmp.Compare(a.Tier, b.Tier)
	case a.Type != b.Type:
		return strings.Compare(string(a.Type), string(b.Type))
	case a.Normalized != b.Normalized:
		return strings.Compare(a.Normalized, b.Normalized)
	case a.Domain != b.Domain:
		return strings.Compare(a.Domain, b.Domain)
	case a.Value != b.Value:
		return strings.Compare(a.Value, b.Value)
	default:
		return strings.Compare(a.Module, b.Module)
	}
}
