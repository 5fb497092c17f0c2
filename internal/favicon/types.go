// Package favicon defines core types shared across subsystems and the
// per-domain favicon discovery engine.
package favicon

// Status represents the terminal outcome of one domain resolution.
type Status string

// Resolution outcomes recorded per input domain.
const (
	StatusFound    Status = "found"
	StatusNotFound Status = "not_found"
	StatusError    Status = "error"
)

// DomainRecord is one row of a batch input list. Rank is the caller's
// declared ordering and is not required to be contiguous or unique; Domain
// is a bare hostname, never a full URL.
type DomainRecord struct {
	Rank   int    `json:"rank"`
	Domain string `json:"domain"`
}

// Result is produced exactly once per input DomainRecord. FaviconURL is
// empty unless Status is StatusFound; ErrorMessage is empty unless Status
// is StatusError.
type Result struct {
	Rank         int    `json:"rank"`
	Domain       string `json:"domain"`
	FaviconURL   string `json:"favicon_url,omitempty"`
	Status       Status `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}
