package model

import "strings"

// Normalize returns the deduplication key for a claim.
// Two claims that differ only in casing or surrounding whitespace normalize to the same key.
func Normalize(claim string) string {
	return strings.TrimSpace(strings.ToLower(claim))
}

// ClaimType categorizes the nature of the claim
type ClaimType string

const (
	ClaimTypeCatastrophic ClaimType = "catastrophic_event"    // Asteroids, planetary impacts
	ClaimTypeOfficial     ClaimType = "official_announcement" // Government, agency or executive statements
	ClaimTypeDeath        ClaimType = "death_claim"           // Someone died or was killed
	ClaimTypeBusiness     ClaimType = "business_event"        // Bankruptcies, shutdowns, acquisitions
	ClaimTypeDisaster     ClaimType = "disaster"              // Natural disasters, explosions, attacks
	ClaimTypeGeneral      ClaimType = "general"               // Everything else
)

// IsExtraordinary reports whether a claim of this type would be widely reported if true.
func (t ClaimType) IsExtraordinary() bool {
	return t != "" && t != ClaimTypeGeneral
}
