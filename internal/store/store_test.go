package store

import (
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fazamuttaqien/eventcal/pkg/crypto"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newStoreMock(t *testing.T, cipher *crypto.TokenCipher) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return New(sqlx.NewDb(db, "sqlmock"), cipher), mock
}

func q(prefix string) string { return regexp.QuoteMeta(prefix) }

var eventCols = []string{
	"id", "creator_id", "title", "description", "type", "start_date", "end_date",
	"timezone", "location", "virtual_link", "is_public", "access", "price_cents", "required_tier",
	"tags", "status", "slug", "created_at", "updated_at",
}

func eventRow(rows *sqlmock.Rows, id, creator, title string, start time.Time) *sqlmock.Rows {
	return rows.AddRow(id, creator, title, "", "WORKSHOP", start, start.Add(time.Hour),
		"UTC", nil, nil, true, "PUBLIC", nil, nil,
		[]byte("{go,backend}"), "PUBLISHED", "slug-"+id, fixedNow, fixedNow)
}

var syncCols = []string{"id", "integration_id", "event_id", "external_id", "operation", "direction", "status", "error", "created_at"}

var conflictCols = []string{
	"id", "integration_id", "event_id", "external_id", "local_snapshot", "remote_snapshot",
	"detected_at", "resolved_at", "resolution",
}
