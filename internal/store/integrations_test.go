package store

import (
	"context"
	"database/sql/driver"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/fazamuttaqien/eventcal/internal/model"
	"github.com/fazamuttaqien/eventcal/pkg/crypto"
	"github.com/fazamuttaqien/eventcal/pkg/enum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var integrationCols = []string{
	"id", "user_id", "provider", "access_token", "refresh_token", "token_expiry",
	"sync_enabled", "settings", "last_sync_at", "created_at", "updated_at",
}

func testCipher(t *testing.T) *crypto.TokenCipher {
	t.Helper()
	c, err := crypto.NewTokenCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	return c
}

// sealedArg matches a token written through the cipher.
type sealedArg struct {
	cipher *crypto.TokenCipher
	want   string
}

func (a sealedArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, "enc:v1:") {
		return false
	}
	plain, err := a.cipher.Open(s)
	return err == nil && plain == a.want
}

func TestUpsertIntegrationSealsTokens(t *testing.T) {
	cipher := testCipher(t)
	s, mock := newStoreMock(t, cipher)
	expiry := fixedNow.Add(time.Hour)

	sealedAccess, err := cipher.Seal("access-1")
	require.NoError(t, err)
	sealedRefresh, err := cipher.Seal("refresh-1")
	require.NoError(t, err)

	mock.ExpectQuery(q("INSERT INTO calendar_integrations")).
		WithArgs("user-1", "GOOGLE", sealedArg{cipher, "access-1"}, sealedArg{cipher, "refresh-1"}, expiry, []byte(`{}`)).
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow("int-1", "user-1", "GOOGLE", sealedAccess, sealedRefresh, expiry, true, []byte(`{}`), nil, fixedNow, fixedNow))

	i := &model.CalendarIntegration{
		UserID:       "user-1",
		Provider:     enum.ProviderGoogle,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenExpiry:  expiry,
	}
	require.NoError(t, s.UpsertIntegration(context.Background(), i))
	assert.Equal(t, "int-1", i.ID)
	assert.Equal(t, "access-1", i.AccessToken)
	assert.Equal(t, "refresh-1", i.RefreshToken)
	assert.True(t, i.SyncEnabled)
	assert.Equal(t, "primary", i.CalendarID())
}

func TestIntegrationReadsLegacyPlaintext(t *testing.T) {
	s, mock := newStoreMock(t, testCipher(t))

	mock.ExpectQuery(q("FROM calendar_integrations WHERE id = $1")).WithArgs("int-1").
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow("int-1", "user-1", "GOOGLE", "plain-access", "plain-refresh", fixedNow, true,
				[]byte(`{"calendarId":"team@group.calendar.google.com"}`), fixedNow, fixedNow, fixedNow))

	i, err := s.Integration(context.Background(), "int-1")
	require.NoError(t, err)
	assert.Equal(t, "plain-access", i.AccessToken)
	assert.Equal(t, "team@group.calendar.google.com", i.CalendarID())
	require.NotNil(t, i.LastSyncAt)
}

func TestIntegrationNotFound(t *testing.T) {
	s, mock := newStoreMock(t, nil)
	mock.ExpectQuery(q("FROM calendar_integrations")).WillReturnRows(sqlmock.NewRows(integrationCols))

	_, err := s.Integration(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEnabledIntegrations(t *testing.T) {
	s, mock := newStoreMock(t, nil)
	mock.ExpectQuery(q("WHERE sync_enabled ORDER BY last_sync_at NULLS FIRST")).
		WillReturnRows(sqlmock.NewRows(integrationCols).
			AddRow("int-1", "user-1", "GOOGLE", "a", "r", fixedNow, true, []byte(`{}`), nil, fixedNow, fixedNow).
			AddRow("int-2", "user-2", "GOOGLE", "a", "r", fixedNow, true, []byte(`{}`), fixedNow, fixedNow, fixedNow))

	list, err := s.EnabledIntegrations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "int-1", list[0].ID)
}

func TestDisableIntegration(t *testing.T) {
	s, mock := newStoreMock(t, nil)

	mock.ExpectExec(q("UPDATE calendar_integrations")).WithArgs("int-1", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE calendar_integrations")).WithArgs("int-1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.DisableIntegration(context.Background(), "int-1", "user-1"))
	assert.ErrorIs(t, s.DisableIntegration(context.Background(), "int-1", "intruder"), ErrNotFound)
}

func TestUpdateIntegrationTokenAndTouch(t *testing.T) {
	cipher := testCipher(t)
	s, mock := newStoreMock(t, cipher)
	expiry := fixedNow.Add(time.Hour)

	mock.ExpectExec(q("SET access_token = $2")).
		WithArgs("int-1", sealedArg{cipher, "fresh"}, sealedArg{cipher, "refresh"}, expiry).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("SET last_sync_at = $2")).WithArgs("int-1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateIntegrationToken(context.Background(), "int-1", "fresh", "refresh", expiry))
	require.NoError(t, s.TouchLastSync(context.Background(), "int-1", fixedNow))
}
