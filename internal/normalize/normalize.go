// Package normalize maps provider-native payloads onto the canonical place
// schema. Each provider has its own typed payload variant and normalizer;
// normalization is pure and total apart from records with no usable name or
// payloads that are not valid JSON objects.
package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placesync/internal/model"
)

// ErrMalformedRecord marks a raw record that cannot be normalized into a
// minimally valid canonical place. Callers skip and count such records.
var ErrMalformedRecord = errors.New("malformed record")

// Normalizer converts one provider's payloads into canonical places.
type Normalizer interface {
	// Provider returns the provider this normalizer handles.
	Provider() model.Provider

	// NativeID extracts the provider-native identifier from a payload.
	NativeID(payload json.RawMessage) (string, error)

	// Normalize maps a raw record onto the canonical schema, stamping
	// created_at and updated_at with now.
	Normalize(raw model.RawPlace, now time.Time) (*model.Place, error)
}

// Registry maps providers to their normalizers.
type Registry struct {
	normalizers map[model.Provider]Normalizer
}

// NewRegistry creates a registry from the given normalizers.
func NewRegistry(ns ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[model.Provider]Normalizer, len(ns))}
	for _, n := range ns {
		r.normalizers[n.Provider()] = n
	}
	return r
}

// DefaultRegistry returns a registry with every supported provider.
func DefaultRegistry() *Registry {
	return NewRegistry(GoogleNormalizer{}, YelpNormalizer{})
}

// Get returns the normalizer for p.
func (r *Registry) Get(p model.Provider) (Normalizer, error) {
	n, ok := r.normalizers[p]
	if !ok {
		return nil, eris.Errorf("normalize: no normalizer for provider %q", p)
	}
	return n, nil
}

// Normalize dispatches raw to the normalizer of its source provider.
func (r *Registry) Normalize(raw model.RawPlace, now time.Time) (*model.Place, error) {
	n, err := r.Get(raw.Source)
	if err != nil {
		return nil, err
	}
	return n.Normalize(raw, now)
}

// PriceTier maps a numeric price level onto its symbolic tier.
func PriceTier(level int) string {
	switch level {
	case 1:
		return "$"
	case 2:
		return "$$"
	case 3:
		return "$$$"
	case 4:
		return "$$$$"
	default:
		return ""
	}
}

// malformed wraps ErrMalformedRecord with provider context.
func malformed(p model.Provider, format string, args ...any) error {
	return eris.Wrapf(ErrMalformedRecord, "normalize: %s: "+format, append([]any{p}, args...)...)
}

// decodePayload unmarshals a provider payload, which must be a JSON object.
// A field of the wrong type is left at its zero value and the rest of the
// payload still decodes; only syntax errors make the record malformed.
func decodePayload(p model.Provider, payload json.RawMessage, dst any) error {
	trimmed := strings.TrimSpace(string(payload))
	if !strings.HasPrefix(trimmed, "{") {
		return malformed(p, "payload is not a JSON object")
	}
	err := json.Unmarshal(payload, dst)
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &typeErr):
		zap.L().Debug("normalize: ignoring mistyped field",
			zap.String("provider", p.String()),
			zap.String("field", typeErr.Field),
			zap.String("value", typeErr.Value),
			zap.Error(err),
		)
		return nil
	default:
		return malformed(p, "decode payload: %v", err)
	}
}

// base builds the fields every normalizer derives from ingestion metadata.
func base(raw model.RawPlace, name, nativeID string, now time.Time) *model.Place {
	p := &model.Place{
		Name:             name,
		CitySlug:         raw.CitySlug,
		CityName:         raw.CityName,
		State:            raw.State,
		StateCode:        raw.StateCode,
		Hours:            []string{},
		SourceIDs:        map[string]string{},
		Sources:          []string{raw.Source.String()},
		SearchCategories: append([]string(nil), raw.Categories...),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if nativeID != "" {
		p.SourceIDs[raw.Source.String()] = nativeID
		p.SourceID = raw.Source.String() + ":" + nativeID
	}
	return p
}
