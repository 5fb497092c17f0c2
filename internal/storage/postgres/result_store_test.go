package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/mchale/favicon-harvester/internal/favicon"
)

func TestArchiveResultsInsertsRowPerResult(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "resolutions")
	require.NoError(t, err)

	finished := time.Unix(1700000000, 0).UTC()
	results := []favicon.Result{
		{Rank: 1, Domain: "one.example", FaviconURL: "https://one.example/favicon.ico", Status: favicon.StatusFound},
		{Rank: 2, Domain: "two.example", Status: favicon.StatusNotFound},
	}

	mock.ExpectExec("INSERT INTO resolutions").
		WithArgs("batch-1", 1, "one.example", "https://one.example/favicon.ico", "found", "", finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO resolutions").
		WithArgs("batch-1", 2, "two.example", "", "not_found", "", finished).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.ArchiveResults(context.Background(), "batch-1", finished, results))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestArchiveResultsPropagatesExecError(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "resolutions")
	require.NoError(t, err)

	finished := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec("INSERT INTO resolutions").
		WithArgs("batch-1", 1, "one.example", "", "error", "boom", finished).
		WillReturnError(errors.New("connection lost"))

	err = store.ArchiveResults(context.Background(), "batch-1", finished, []favicon.Result{
		{Rank: 1, Domain: "one.example", Status: favicon.StatusError, ErrorMessage: "boom"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "one.example")
}

func TestArchiveResultsRequiresBatchID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewResultStoreWithPool(mock, "resolutions")
	require.NoError(t, err)

	err = store.ArchiveResults(context.Background(), "", time.Now(), nil)
	require.Error(t, err)
}

func TestNewResultStoreWithPoolRejectsBadTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewResultStoreWithPool(mock, "bad table; drop")
	require.Error(t, err)
}
