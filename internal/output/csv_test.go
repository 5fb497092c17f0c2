package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	results := []favicon.Result{
		{Rank: 1, Domain: "example.com", FaviconURL: "https://example.com/favicon.ico", Status: favicon.StatusFound},
		{Rank: 2, Domain: "missing.example", Status: favicon.StatusNotFound},
		{Rank: 3, Domain: "broken.example", Status: favicon.StatusError, ErrorMessage: "host rate limit: context deadline exceeded"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	require.Equal(t, "rank,domain,favicon_url,status,error", lines[0])
	require.Equal(t, "1,example.com,https://example.com/favicon.ico,found,", lines[1])
	require.Equal(t, "2,missing.example,,not_found,", lines[2])
	require.Equal(t, "3,broken.example,,error,host rate limit: context deadline exceeded", lines[3])
}

func TestWriteCSVEmpty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	require.Equal(t, "rank,domain,favicon_url,status,error\n", buf.String())
}

func TestWriteCSVQuotesCommas(t *testing.T) {
	t.Parallel()

	results := []favicon.Result{
		{Rank: 1, Domain: "example.com", Status: favicon.StatusError, ErrorMessage: "bad, very bad"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, results))
	require.Contains(t, buf.String(), `"bad, very bad"`)
}

func TestEncodeCSV(t *testing.T) {
	t.Parallel()

	data, err := EncodeCSV([]favicon.Result{
		{Rank: 5, Domain: "one.example", Status: favicon.StatusFound, FaviconURL: "https://one.example/favicon.ico"},
	})
	require.NoError(t, err)
	require.Contains(t, string(data), "5,one.example,https://one.example/favicon.ico,found,")
}
