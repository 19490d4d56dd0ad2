package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fazamuttaqien/eventcal/internal/model"
)

const integrationColumns = `id, user_id, provider, access_token, refresh_token, token_expiry,
	sync_enabled, settings, last_sync_at, created_at, updated_at`

// UpsertIntegration stores the tokens from an OAuth callback. Reconnecting
// re-enables the integration; an empty refresh token keeps the stored one.
func (s *Store) UpsertIntegration(ctx context.Context, i *model.CalendarIntegration) error {
	access, err := s.cipher.Seal(i.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := s.cipher.Seal(i.RefreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}
	settings := i.Settings
	if len(settings) == 0 {
		settings = []byte(`{}`)
	}

	query := `
		INSERT INTO calendar_integrations (user_id, provider, access_token, refresh_token, token_expiry, settings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = CASE WHEN EXCLUDED.refresh_token = ''
				THEN calendar_integrations.refresh_token ELSE EXCLUDED.refresh_token END,
			token_expiry = EXCLUDED.token_expiry,
			sync_enabled = TRUE,
			updated_at = NOW()
		RETURNING ` + integrationColumns

	var out model.CalendarIntegration
	if err := s.db.GetContext(ctx, &out, query, i.UserID, i.Provider, access, refresh, i.TokenExpiry, []byte(settings)); err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	if err := s.openTokens(&out); err != nil {
		return err
	}
	*i = out
	return nil
}

func (s *Store) Integration(ctx context.Context, id string) (*model.CalendarIntegration, error) {
	var i model.CalendarIntegration
	err := s.db.GetContext(ctx, &i, `SELECT `+integrationColumns+` FROM calendar_integrations WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	if err := s.openTokens(&i); err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *Store) IntegrationsByUser(ctx context.Context, userID string) ([]model.CalendarIntegration, error) {
	return s.listIntegrations(ctx, `WHERE user_id = $1 ORDER BY created_at`, userID)
}

// EnabledIntegrations is the scheduler's work list.
func (s *Store) EnabledIntegrations(ctx context.Context) ([]model.CalendarIntegration, error) {
	return s.listIntegrations(ctx, `WHERE sync_enabled ORDER BY last_sync_at NULLS FIRST, id`)
}

func (s *Store) listIntegrations(ctx context.Context, clause string, args ...any) ([]model.CalendarIntegration, error) {
	var list []model.CalendarIntegration
	query := `SELECT ` + integrationColumns + ` FROM calendar_integrations ` + clause
	if err := s.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list integrations: %w", err)
	}
	for i := range list {
		if err := s.openTokens(&list[i]); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// DisableIntegration stops syncing and drops the stored tokens. The row and its
// sync history stay.
func (s *Store) DisableIntegration(ctx context.Context, id, userID string) error {
	const query = `
		UPDATE calendar_integrations
		SET sync_enabled = FALSE, access_token = '', refresh_token = '', updated_at = NOW()
		WHERE id = $1 AND user_id = $2`

	res, err := s.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("disable integration: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateIntegrationToken implements calsync.Store.
func (s *Store) UpdateIntegrationToken(ctx context.Context, integrationID, accessToken, refreshToken string, expiry time.Time) error {
	access, err := s.cipher.Seal(accessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := s.cipher.Seal(refreshToken)
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	const query = `
		UPDATE calendar_integrations
		SET access_token = $2, refresh_token = $3, token_expiry = $4, updated_at = NOW()
		WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, integrationID, access, refresh, expiry); err != nil {
		return fmt.Errorf("update integration token: %w", err)
	}
	return nil
}

// TouchLastSync implements calsync.Store.
func (s *Store) TouchLastSync(ctx context.Context, integrationID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE calendar_integrations SET last_sync_at = $2, updated_at = NOW() WHERE id = $1`,
		integrationID, at)
	if err != nil {
		return fmt.Errorf("touch last sync: %w", err)
	}
	return nil
}

func (s *Store) openTokens(i *model.CalendarIntegration) error {
	var err error
	if i.AccessToken, err = s.cipher.Open(i.AccessToken); err != nil {
		return fmt.Errorf("open access token: %w", err)
	}
	if i.RefreshToken, err = s.cipher.Open(i.RefreshToken); err != nil {
		return fmt.Errorf("open refresh token: %w", err)
	}
	return nil
}
