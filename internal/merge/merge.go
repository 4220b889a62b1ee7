// Package merge implements the two conflict policies applied when records
// collide: the raw ingest merge, keyed by (source, native id), and the
// cross-source combine merge, keyed by identity.
package merge

import (
	"github.com/sells-group/placesync/internal/identity"
	"github.com/sells-group/placesync/internal/model"
)

// Raw merges an incoming raw record over an existing one. Categories are
// unioned; every other field is replaced wholesale by incoming, so fields
// absent from the latest payload are dropped.
func Raw(existing, incoming model.RawPlace) model.RawPlace {
	out := incoming
	out.Categories = UnionStrings(existing.Categories, incoming.Categories)
	return out
}

// Combine folds incoming into existing in place. Sources, ingestion tags and
// source ids accumulate; every other field is only filled when existing has
// no value for it. The merge is order dependent: existing wins conflicts.
func Combine(existing, incoming *model.Place) {
	existing.Sources = UnionStrings(existing.Sources, incoming.Sources)
	existing.SearchCategories = UnionStrings(existing.SearchCategories, incoming.SearchCategories)

	if existing.SourceIDs == nil && len(incoming.SourceIDs) > 0 {
		existing.SourceIDs = make(map[string]string, len(incoming.SourceIDs))
	}
	for provider, id := range incoming.SourceIDs {
		if id == "" {
			continue
		}
		if _, ok := existing.SourceIDs[provider]; !ok {
			existing.SourceIDs[provider] = id
		}
	}

	fillString(&existing.ID, incoming.ID)
	fillString(&existing.Name, incoming.Name)
	fillString(&existing.Address, incoming.Address)
	fillString(&existing.CitySlug, incoming.CitySlug)
	fillString(&existing.CityName, incoming.CityName)
	fillString(&existing.State, incoming.State)
	fillString(&existing.StateCode, incoming.StateCode)
	fillString(&existing.ZipCode, incoming.ZipCode)
	fillString(&existing.Country, incoming.Country)
	if existing.Location.IsZero() {
		existing.Location = incoming.Location
	}
	fillString(&existing.Phone, incoming.Phone)
	fillString(&existing.Website, incoming.Website)
	if existing.Rating == 0 {
		existing.Rating = incoming.Rating
	}
	if existing.ReviewCount == 0 {
		existing.ReviewCount = incoming.ReviewCount
	}
	fillString(&existing.PriceLevel, incoming.PriceLevel)
	fillString(&existing.Category, incoming.Category)
	fillString(&existing.Categories, incoming.Categories)
	fillString(&existing.ImageURL, incoming.ImageURL)
	if !existing.IsClosed {
		existing.IsClosed = incoming.IsClosed
	}
	if len(existing.Hours) == 0 && len(incoming.Hours) > 0 {
		existing.Hours = append([]string(nil), incoming.Hours...)
	}
	fillString(&existing.SourceID, incoming.SourceID)
	if existing.CreatedAt.IsZero() {
		existing.CreatedAt = incoming.CreatedAt
	}
	if existing.UpdatedAt.IsZero() {
		existing.UpdatedAt = incoming.UpdatedAt
	}
}

// Fold combines places sharing an identity key. The input must already be
// in processing order: the first occurrence of a key is the existing record.
// Survivors are returned in first-seen order along with the number of
// records folded into them. The input places are not modified.
func Fold(places []*model.Place) ([]*model.Place, int) {
	byKey := make(map[string]*model.Place, len(places))
	survivors := make([]*model.Place, 0, len(places))
	folds := 0
	for _, p := range places {
		key := identity.Key(p)
		if existing, ok := byKey[key]; ok {
			Combine(existing, p)
			folds++
			continue
		}
		c := p.Clone()
		byKey[key] = c
		survivors = append(survivors, c)
	}
	return survivors, folds
}

// UnionStrings returns a followed by the elements of b not already present,
// dropping empty strings and duplicates. The result is never nil.
func UnionStrings(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

func fillString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}
