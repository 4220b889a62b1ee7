package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// RawPlace is a provider-native record plus the ingestion metadata attached
// by the pipeline. (Source, NativeID) is unique in the raw collection.
type RawPlace struct {
	Source     Provider        `json:"source"`
	NativeID   string          `json:"id"`
	CitySlug   string          `json:"city_slug"`
	CityID     string          `json:"city_id"`
	CityName   string          `json:"city_name"`
	State      string          `json:"state"`
	StateCode  string          `json:"state_code"`
	Categories []string        `json:"categories"`
	Payload    json.RawMessage `json:"-"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HasCategory reports whether the record was ingested under tag.
func (r *RawPlace) HasCategory(tag string) bool {
	for _, c := range r.Categories {
		if c == tag {
			return true
		}
	}
	return false
}

// MarshalJSON renders the raw collection document: the provider-native
// fields verbatim with the ingestion metadata layered on top.
func (r RawPlace) MarshalJSON() ([]byte, error) {
	doc := map[string]any{}
	if len(r.Payload) > 0 {
		if err := json.Unmarshal(r.Payload, &doc); err != nil {
			return nil, eris.Wrap(err, "raw place: decode payload")
		}
	}
	categories := r.Categories
	if categories == nil {
		categories = []string{}
	}
	doc["source"] = r.Source
	doc["id"] = r.NativeID
	doc["city_slug"] = r.CitySlug
	doc["city_id"] = r.CityID
	doc["city_name"] = r.CityName
	doc["state"] = r.State
	doc["state_code"] = r.StateCode
	doc["categories"] = categories
	doc["updated_at"] = r.UpdatedAt
	return json.Marshal(doc)
}
