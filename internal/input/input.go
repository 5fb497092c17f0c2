// Package input parses domain lists for batch submission.
//
// Two formats are accepted: CSV with "rank,domain" rows (a header row is
// detected and skipped) and plain text with one domain per line. Blank
// lines and lines starting with '#' are ignored. Domains may be given as
// bare hostnames or full URLs; URLs are reduced to their hostname.
package input

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

// maxLineBytes bounds a single input line to keep hostile files from
// ballooning the scanner buffer.
const maxLineBytes = 64 * 1024

// ParseDomains reads a domain list from r and returns records in file
// order. Plain lines are assigned ranks by position (1-based); CSV rows
// keep their explicit rank.
func ParseDomains(r io.Reader) ([]favicon.DomainRecord, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineBytes)

	var records []favicon.DomainRecord
	lineNo := 0
	nextRank := 1
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rank, domain, err := parseLine(line, nextRank)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if domain == "" {
			// Header row.
			continue
		}
		records = append(records, favicon.DomainRecord{Rank: rank, Domain: domain})
		nextRank = rank + 1
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read domain list: %w", err)
	}
	return records, nil
}

func parseLine(line string, defaultRank int) (int, string, error) {
	if i := strings.IndexByte(line, ','); i >= 0 {
		rankField := strings.TrimSpace(line[:i])
		domainField := strings.TrimSpace(line[i+1:])
		if strings.EqualFold(rankField, "rank") {
			return 0, "", nil
		}
		rank, err := strconv.Atoi(rankField)
		if err != nil {
			return 0, "", fmt.Errorf("invalid rank %q", rankField)
		}
		domain, err := CleanDomain(domainField)
		if err != nil {
			return 0, "", err
		}
		return rank, domain, nil
	}

	domain, err := CleanDomain(line)
	if err != nil {
		return 0, "", err
	}
	return defaultRank, domain, nil
}

// CleanDomain reduces a raw domain field to a bare lowercase hostname.
// Full URLs lose their scheme, path, port, and credentials.
func CleanDomain(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty domain")
	}

	host := raw
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("invalid domain URL %q", raw)
		}
		host = u.Hostname()
	} else if i := strings.IndexAny(raw, "/?#"); i >= 0 {
		host = raw[:i]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host, "]") {
		host = host[:i]
	}

	host = strings.ToLower(strings.TrimSuffix(host, "."))
	if host == "" {
		return "", fmt.Errorf("no hostname in %q", raw)
	}
	if strings.ContainsAny(host, " \t") {
		return "", fmt.Errorf("invalid hostname %q", host)
	}
	return host, nil
}
