package favicon

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeIconHref converts a raw href/content value extracted from page
// markup into an absolute URL. scheme is the scheme the page was fetched
// over; base is the redirect-resolved URL of the page itself.
//
// Protocol-relative values gain the current scheme, root-relative values
// resolve against the base origin, absolute values pass through, and
// anything else resolves as a relative reference against base.
func NormalizeIconHref(raw, scheme string, base *url.URL) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty icon reference")
	}
	if strings.HasPrefix(raw, "data:") {
		return "", fmt.Errorf("inline data URI is not a fetchable icon")
	}
	if strings.HasPrefix(raw, "//") {
		return scheme + ":" + raw, nil
	}
	if base == nil {
		return "", fmt.Errorf("no base url for %q", raw)
	}
	if strings.HasPrefix(raw, "/") {
		return fmt.Sprintf("%s://%s%s", base.Scheme, base.Host, raw), nil
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse icon reference %q: %w", raw, err)
	}
	if ref.IsAbs() {
		return raw, nil
	}
	return base.ResolveReference(ref).String(), nil
}
