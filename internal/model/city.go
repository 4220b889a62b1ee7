package model

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// City is a city the collectors can target. Slug is unique.
type City struct {
	ID        string    `json:"_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	State     string    `json:"state"`
	StateCode string    `json:"state_code"`
	Country   string    `json:"country"`
	Location  Location  `json:"location"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SearchLocation renders the "City, ST" string used in provider queries.
func (c *City) SearchLocation() string {
	region := c.StateCode
	if region == "" {
		region = c.State
	}
	if region == "" {
		return c.Name
	}
	return c.Name + ", " + region
}

// Slugify lowercases name, strips diacritics and joins the remaining
// words with hyphens ("São Paulo" -> "sao-paulo").
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	return b.String()
}
