package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/placesync/internal/model"
)

var weekdays = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// yelpBusiness is the Fusion business details payload, overlaid on the
// search result it was enriched from.
type yelpBusiness struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"image_url"`
	IsClosed     bool    `json:"is_closed"`
	Phone        string  `json:"phone"`
	DisplayPhone string  `json:"display_phone"`
	ReviewCount  int     `json:"review_count"`
	Rating       float64 `json:"rating"`
	Price        string  `json:"price"`

	Categories []struct {
		Alias string `json:"alias"`
		Title string `json:"title"`
	} `json:"categories"`

	Coordinates struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"coordinates"`

	Location struct {
		Address1       string   `json:"address1"`
		City           string   `json:"city"`
		ZipCode        string   `json:"zip_code"`
		Country        string   `json:"country"`
		State          string   `json:"state"`
		DisplayAddress []string `json:"display_address"`
	} `json:"location"`

	Hours []yelpHours `json:"hours"`
}

type yelpHours struct {
	HoursType string `json:"hours_type"`
	Open      []struct {
		Day         int    `json:"day"`
		Start       string `json:"start"`
		End         string `json:"end"`
		IsOvernight bool   `json:"is_overnight"`
	} `json:"open"`
}

// YelpNormalizer normalizes Yelp Fusion payloads.
type YelpNormalizer struct{}

// Provider implements Normalizer.
func (YelpNormalizer) Provider() model.Provider { return model.ProviderYelp }

// NativeID implements Normalizer.
func (YelpNormalizer) NativeID(payload json.RawMessage) (string, error) {
	var b struct {
		ID string `json:"id"`
	}
	if err := decodePayload(model.ProviderYelp, payload, &b); err != nil {
		return "", err
	}
	if b.ID == "" {
		return "", malformed(model.ProviderYelp, "missing id")
	}
	return b.ID, nil
}

// Normalize implements Normalizer.
func (YelpNormalizer) Normalize(raw model.RawPlace, now time.Time) (*model.Place, error) {
	var b yelpBusiness
	if err := decodePayload(model.ProviderYelp, raw.Payload, &b); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(b.Name)
	if name == "" {
		return nil, malformed(model.ProviderYelp, "business %q has no name", b.ID)
	}

	nativeID := firstNonEmpty(b.ID, raw.NativeID)
	p := base(raw, name, nativeID, now)

	p.Address = yelpAddress(&b)
	p.ZipCode = b.Location.ZipCode
	p.Country = b.Location.Country
	p.Location = model.NewLocation(b.Coordinates.Latitude, b.Coordinates.Longitude)
	p.Phone = firstNonEmpty(b.DisplayPhone, b.Phone)
	p.Rating = b.Rating
	p.ReviewCount = b.ReviewCount
	p.PriceLevel = yelpPrice(b.Price)
	if len(b.Categories) > 0 {
		aliases := make([]string, 0, len(b.Categories))
		for _, c := range b.Categories {
			if c.Alias != "" {
				aliases = append(aliases, c.Alias)
			}
		}
		if len(aliases) > 0 {
			p.Category = aliases[0]
			p.Categories = strings.Join(aliases, ", ")
		}
	}
	p.ImageURL = b.ImageURL
	p.IsClosed = b.IsClosed
	if len(b.Hours) > 0 {
		p.Hours = yelpWeekdayText(b.Hours[0])
	}
	return p, nil
}

func yelpAddress(b *yelpBusiness) string {
	if len(b.Location.DisplayAddress) > 0 {
		return strings.Join(b.Location.DisplayAddress, ", ")
	}
	var parts []string
	for _, s := range []string{b.Location.Address1, b.Location.City, b.Location.State} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

// yelpPrice accepts Yelp's symbolic tiers and drops anything else.
func yelpPrice(price string) string {
	price = strings.TrimSpace(price)
	if len(price) < 1 || len(price) > 4 || strings.Trim(price, "$") != "" {
		return defaultString
	}
	return price
}

// yelpWeekdayText renders Yelp opening intervals in the same
// "Monday: 9:00 AM – 5:00 PM" form Google uses for weekday_text.
func yelpWeekdayText(h yelpHours) []string {
	if len(h.Open) == 0 {
		return []string{}
	}
	var spans [7][]string
	for _, o := range h.Open {
		if o.Day < 0 || o.Day > 6 {
			continue
		}
		spans[o.Day] = append(spans[o.Day], clock(o.Start)+" – "+clock(o.End))
	}
	out := make([]string, 0, len(weekdays))
	for i, day := range weekdays {
		if len(spans[i]) == 0 {
			out = append(out, day+": Closed")
			continue
		}
		out = append(out, day+": "+strings.Join(spans[i], ", "))
	}
	return out
}

// clock converts "HHMM" into a 12-hour clock string.
func clock(hhmm string) string {
	if len(hhmm) != 4 {
		return hhmm
	}
	h, err := strconv.Atoi(hhmm[:2])
	if err != nil {
		return hhmm
	}
	m, err := strconv.Atoi(hhmm[2:])
	if err != nil {
		return hhmm
	}
	suffix := "AM"
	if h >= 12 {
		suffix = "PM"
	}
	h12 := h % 12
	if h12 == 0 {
		h12 = 12
	}
	return fmt.Sprintf("%d:%02d %s", h12, m, suffix)
}
