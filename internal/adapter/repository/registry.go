package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

// Case registry: many-to-many domain -> external case UUIDs. UpsertCase is
// the sole mutator and runs under a row lock so the site_monitoring and
// dns_finder pipelines cannot interleave a read-modify-write.

func (s *Store) GetCases(ctx context.Context, dom string) ([]string, error) {
	var uuids []string
	err := s.db.QueryRow(ctx,
		`SELECT case_uuids FROM domain_cases WHERE domain = $1`, dom).Scan(&uuids)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query domain cases: %w", err)
	}
	return uuids, nil
}

func (s *Store) UpsertCase(ctx context.Context, dom, caseUUID string) error {
	if _, err := uuid.Parse(caseUUID); err != nil {
		return fmt.Errorf("invalid case uuid %q: %w", caseUUID, err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var uuids []string
	err = tx.QueryRow(ctx,
		`SELECT case_uuids FROM domain_cases WHERE domain = $1 FOR UPDATE`, dom).Scan(&uuids)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to lock domain case row: %w", err)
	}

	uuids = domain.AppendCaseUUID(uuids, caseUUID)

	if _, err := tx.Exec(ctx, `
		INSERT INTO domain_cases (domain, case_uuids, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (domain) DO UPDATE
		SET case_uuids = EXCLUDED.case_uuids, updated_at = now()`,
		dom, uuids); err != nil {
		return fmt.Errorf("failed to upsert domain case: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit domain case: %w", err)
	}
	return nil
}

// CheckAndDeleteIfUnused drops the mapping when neither a watched site nor a
// twisted-DNS entry references the domain any more. Called after deleting
// either referencing entity.
func (s *Store) CheckAndDeleteIfUnused(ctx context.Context, dom string) (bool, error) {
	siteRef, err := s.SiteExists(ctx, dom)
	if err != nil {
		return false, err
	}
	if siteRef {
		return false, nil
	}

	var twistedRef bool
	err = s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM twisted_dns WHERE domain = $1)`, dom).Scan(&twistedRef)
	if err != nil {
		return false, fmt.Errorf("failed to check twisted reference: %w", err)
	}
	if twistedRef {
		return false, nil
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM domain_cases WHERE domain = $1`, dom)
	if err != nil {
		return false, fmt.Errorf("failed to delete domain case: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
