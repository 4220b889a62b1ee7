package model

import (
	"strings"
	"time"
)

// Place is the canonical, provider-agnostic venue record stored in the
// processed collection.
type Place struct {
	ID string `json:"_id,omitempty"`

	Name      string `json:"name"`
	Address   string `json:"address"`
	CitySlug  string `json:"city_slug"`
	CityName  string `json:"city_name"`
	State     string `json:"state"`
	StateCode string `json:"state_code"`
	ZipCode   string `json:"zip_code"`
	Country   string `json:"country"`

	Location Location `json:"location"`

	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	PriceLevel  string   `json:"price_level"`
	Category    string   `json:"category"`
	Categories  string   `json:"categories"`
	ImageURL    string   `json:"image_url"`
	IsClosed    bool     `json:"is_closed"`
	Hours       []string `json:"hours"`

	// SourceID is the primary "provider:native_id" of the first contributor.
	SourceID  string            `json:"source_id,omitempty"`
	SourceIDs map[string]string `json:"source_ids"`
	Sources   []string          `json:"sources"`

	// SearchCategories carries the ingestion tags of every contributing raw record.
	SearchCategories []string `json:"search_categories,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CategoryList splits the comma-joined categories string.
func (p *Place) CategoryList() []string {
	if p.Categories == "" {
		return nil
	}
	parts := strings.Split(p.Categories, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// HasCategory reports whether tag is the primary category, one of the
// joined categories, or one of the ingestion tags.
func (p *Place) HasCategory(tag string) bool {
	if tag == "" {
		return true
	}
	if p.Category == tag {
		return true
	}
	for _, c := range p.CategoryList() {
		if c == tag {
			return true
		}
	}
	for _, c := range p.SearchCategories {
		if c == tag {
			return true
		}
	}
	return false
}

// HasSource reports whether provider has contributed to the record.
func (p *Place) HasSource(provider string) bool {
	for _, s := range p.Sources {
		if s == provider {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the place.
func (p *Place) Clone() *Place {
	c := *p
	if p.Hours != nil {
		c.Hours = append([]string(nil), p.Hours...)
	}
	if p.Sources != nil {
		c.Sources = append([]string(nil), p.Sources...)
	}
	if p.SearchCategories != nil {
		c.SearchCategories = append([]string(nil), p.SearchCategories...)
	}
	if p.SourceIDs != nil {
		c.SourceIDs = make(map[string]string, len(p.SourceIDs))
		for k, v := range p.SourceIDs {
			c.SourceIDs[k] = v
		}
	}
	return &c
}
