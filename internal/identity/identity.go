// Package identity derives the deduplication key used to decide whether two
// canonical places describe the same real-world venue.
package identity

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/placesync/internal/model"
)

const sep = "_"

// Key returns the identity key of p: the lowercased name and city slug, plus
// the coordinates rounded to three decimals when both are known.
func Key(p *model.Place) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(p.Name))
	b.WriteString(sep)
	b.WriteString(p.CitySlug)
	if p.Location.Known() {
		b.WriteString(sep)
		b.WriteString(RoundCoord(p.Location.Lat))
		b.WriteString(sep)
		b.WriteString(RoundCoord(p.Location.Lng))
	}
	return b.String()
}

// RoundCoord rounds half away from zero to three decimals (about 100 m) and
// formats the result in its shortest form.
func RoundCoord(v float64) string {
	r := math.Round(v*1000) / 1000
	if r == 0 {
		// Collapse -0.
		r = 0
	}
	return strconv.FormatFloat(r, 'f', -1, 64)
}
