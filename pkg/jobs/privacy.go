package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// HashURL returns the digest used for analytics dedup without retaining the
// URL itself (§3 Job.url_hash, §13 privacy filter).
func HashURL(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// DomainOf extracts the lowercase host for analytics, the only URL fragment
// ever persisted beyond the hash (§13: "only url_domain is retained, never
// the full URL").
func DomainOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Analytics is the privacy-filtered slice of a render request worth
// persisting: everything else (html, headers, cookies, the raw URL) is
// confined to the transient options payload the handler hands to the
// worker and never reaches Job at all — there is no field to strip because
// the type never carries it (§13).
type Analytics struct {
	URLHash   string
	URLDomain string
}

// NewAnalytics computes the privacy-filtered metadata for a URL-sourced
// request. HTML-sourced PDFs have no URL and get a zero-value Analytics.
func NewAnalytics(rawURL string) Analytics {
	if rawURL == "" {
		return Analytics{}
	}
	return Analytics{URLHash: HashURL(rawURL), URLDomain: DomainOf(rawURL)}
}
