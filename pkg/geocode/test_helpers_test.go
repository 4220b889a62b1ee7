package geocode

import (
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

func newTestLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

// newRewriteClient sends requests aimed at base (normally defaultBaseURL)
// to the test server, keeping the path below base and the query intact.
func newRewriteClient(testServerURL, base string) *http.Client {
	target, _ := url.Parse(testServerURL)
	return &http.Client{Transport: redirectTransport{target: target, base: base}}
}

type redirectTransport struct {
	target *url.URL
	base   string
}

func (t redirectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rest, ok := strings.CutPrefix(req.URL.String(), t.base)
	if !ok {
		return http.DefaultTransport.RoundTrip(req)
	}
	u, err := t.target.Parse(t.target.Path + rest)
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = u
	out.Host = u.Host
	return http.DefaultTransport.RoundTrip(out)
}
