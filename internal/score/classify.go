package score

import (
	"regexp"

	"github.com/ppiankov/chainbreaker/internal/model"
)

// claimPatterns are checked in order; the first match wins. Patterns anchor on
// the left word boundary only, so "asteroids" and "bankruptcy" match but
// "white" does not match "hit".
var claimPatterns = []struct {
	claimType model.ClaimType
	pattern   *regexp.Regexp
}{
	{model.ClaimTypeCatastrophic, regexp.MustCompile(`(?i)\b(asteroid|meteor|comet|earth|planet|hit|impact|destroy)`)},
	{model.ClaimTypeOfficial, regexp.MustCompile(`(?i)\b(nasa|government|president|ceo|official|confirmed|announced|declared)`)},
	{model.ClaimTypeDeath, regexp.MustCompile(`(?i)\b(died|death|killed|passed away|deceased)`)},
	{model.ClaimTypeBusiness, regexp.MustCompile(`(?i)\b(bankrupt|shutdown|closed|cancelled|acquired|merged)`)},
	{model.ClaimTypeDisaster, regexp.MustCompile(`(?i)\b(earthquake|tsunami|hurricane|flood|fire|explosion|attack)`)},
}

// Classify assigns a claim to the first matching category
func Classify(claim string) model.ClaimType {
	for _, p := range claimPatterns {
		if p.pattern.MatchString(claim) {
			return p.claimType
		}
	}
	return model.ClaimTypeGeneral
}
