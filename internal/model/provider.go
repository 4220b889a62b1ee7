package model

import "github.com/rotisserie/eris"

// Provider identifies an external directory that contributes raw records.
type Provider string

const (
	ProviderGoogle Provider = "google"
	ProviderYelp   Provider = "yelp"
)

// Providers lists every supported provider in default processing order.
var Providers = []Provider{ProviderGoogle, ProviderYelp}

// String returns the provider name as stored in documents.
func (p Provider) String() string { return string(p) }

// ParseProvider converts a string into a Provider.
func ParseProvider(s string) (Provider, error) {
	switch Provider(s) {
	case ProviderGoogle, ProviderYelp:
		return Provider(s), nil
	default:
		return "", eris.Errorf("unknown provider: %q (valid: google, yelp)", s)
	}
}
