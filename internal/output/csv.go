// Package output renders resolved batches as tabular files.
package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

var csvHeader = []string{"rank", "domain", "favicon_url", "status", "error"}

// WriteCSV streams the result set as CSV with a header row. Results are
// written in the order given; callers pass the rank-sorted slice the
// orchestrator returns.
func WriteCSV(w io.Writer, results []favicon.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, res := range results {
		row := []string{
			strconv.Itoa(res.Rank),
			res.Domain,
			res.FaviconURL,
			string(res.Status),
			res.ErrorMessage,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row for %s: %w", res.Domain, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// EncodeCSV renders the result set into a byte slice, for blob storage.
func EncodeCSV(results []favicon.Result) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, results); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
