package normalize

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sells-group/placesync/internal/model"
)

// googlePlace is the Places details payload, overlaid on the text search
// result it was enriched from.
type googlePlace struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Vicinity         string   `json:"vicinity"`
	FormattedPhone   string   `json:"formatted_phone_number"`
	Website          string   `json:"website"`
	Rating           float64  `json:"rating"`
	UserRatingsTotal int      `json:"user_ratings_total"`
	PriceLevel       int      `json:"price_level"`
	BusinessStatus   string   `json:"business_status"`
	Types            []string `json:"types"`

	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`

	OpeningHours struct {
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`

	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`

	AddressComponents []struct {
		LongName  string   `json:"long_name"`
		ShortName string   `json:"short_name"`
		Types     []string `json:"types"`
	} `json:"address_components"`
}

// component returns the long name of the first address component of type t.
func (g *googlePlace) component(t string) string {
	for _, c := range g.AddressComponents {
		for _, ct := range c.Types {
			if ct == t {
				return c.LongName
			}
		}
	}
	return defaultString
}

// GoogleNormalizer normalizes Google Places payloads.
type GoogleNormalizer struct{}

// Provider implements Normalizer.
func (GoogleNormalizer) Provider() model.Provider { return model.ProviderGoogle }

// NativeID implements Normalizer.
func (GoogleNormalizer) NativeID(payload json.RawMessage) (string, error) {
	var g struct {
		PlaceID string `json:"place_id"`
	}
	if err := decodePayload(model.ProviderGoogle, payload, &g); err != nil {
		return "", err
	}
	if g.PlaceID == "" {
		return "", malformed(model.ProviderGoogle, "missing place_id")
	}
	return g.PlaceID, nil
}

// Normalize implements Normalizer.
func (GoogleNormalizer) Normalize(raw model.RawPlace, now time.Time) (*model.Place, error) {
	var g googlePlace
	if err := decodePayload(model.ProviderGoogle, raw.Payload, &g); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(g.Name)
	if name == "" {
		return nil, malformed(model.ProviderGoogle, "place %q has no name", g.PlaceID)
	}

	nativeID := firstNonEmpty(g.PlaceID, raw.NativeID)
	p := base(raw, name, nativeID, now)

	p.Address = firstNonEmpty(g.FormattedAddress, g.Vicinity)
	p.ZipCode = g.component("postal_code")
	p.Country = g.component("country")
	p.Location = model.NewLocation(g.Geometry.Location.Lat, g.Geometry.Location.Lng)
	p.Phone = g.FormattedPhone
	p.Website = g.Website
	p.Rating = g.Rating
	p.ReviewCount = g.UserRatingsTotal
	p.PriceLevel = PriceTier(g.PriceLevel)
	if len(g.Types) > 0 {
		p.Category = g.Types[0]
		p.Categories = strings.Join(g.Types, ", ")
	}
	if len(g.Photos) > 0 {
		p.ImageURL = g.Photos[0].PhotoReference
	}
	p.IsClosed = g.BusinessStatus == "CLOSED_PERMANENTLY"
	if len(g.OpeningHours.WeekdayText) > 0 {
		p.Hours = append([]string(nil), g.OpeningHours.WeekdayText...)
	}
	return p, nil
}
