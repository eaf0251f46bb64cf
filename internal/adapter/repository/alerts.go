package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

func (s *Store) TwistedExists(ctx context.Context, dom string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM twisted_dns WHERE domain = $1)`, dom).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check twisted dns existence: %w", err)
	}
	return exists, nil
}

// TwistedExistsForParentDomain reports whether any twisted entry still hangs
// off the given watched-DNS domain. Used by the registry cleanup.
func (s *Store) TwistedExistsForParentDomain(ctx context.Context, parent string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM twisted_dns t
			JOIN watched_dns w ON w.id = t.source_watched_dns
			WHERE w.domain = $1
		)`, parent).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check twisted parent reference: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateTwisted(ctx context.Context, tw *domain.TwistedDNS) (*domain.TwistedDNS, error) {
	if !tw.Valid() {
		return nil, fmt.Errorf("twisted dns %q must have exactly one source", tw.Domain)
	}

	var dnsID, kwID *int64
	if tw.SourceWatchedDNS != nil {
		dnsID = &tw.SourceWatchedDNS.ID
	}
	if tw.SourceKeyword != nil {
		kwID = &tw.SourceKeyword.ID
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO twisted_dns (domain, source_watched_dns, source_keyword, fuzzer)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		tw.Domain, dnsID, kwID, tw.Fuzzer,
	).Scan(&tw.ID, &tw.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			// Another worker registered the same look-alike first.
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create twisted dns: %w", err)
	}
	return tw, nil
}

// ListTwistedSince returns recent look-alike discoveries with their source
// entity hydrated, newest first.
func (s *Store) ListTwistedSince(ctx context.Context, since time.Time, limit int) ([]domain.TwistedDNS, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.id, t.domain, t.fuzzer, t.created_at,
		       w.id, w.domain, k.id, k.name
		FROM twisted_dns t
		LEFT JOIN watched_dns w ON w.id = t.source_watched_dns
		LEFT JOIN watched_keywords k ON k.id = t.source_keyword
		WHERE t.created_at >= $1
		ORDER BY t.created_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query twisted dns: %w", err)
	}
	defer rows.Close()

	var out []domain.TwistedDNS
	for rows.Next() {
		var (
			tw     domain.TwistedDNS
			dnsID  *int64
			dnsDom *string
			kwID   *int64
			kwName *string
		)
		if err := rows.Scan(&tw.ID, &tw.Domain, &tw.Fuzzer, &tw.CreatedAt,
			&dnsID, &dnsDom, &kwID, &kwName); err != nil {
			return nil, fmt.Errorf("failed to scan twisted dns: %w", err)
		}
		if dnsID != nil {
			tw.SourceWatchedDNS = &domain.WatchedDNS{ID: *dnsID, Domain: *dnsDom}
		}
		if kwID != nil {
			tw.SourceKeyword = &domain.WatchedKeyword{ID: *kwID, Name: *kwName}
		}
		out = append(out, tw)
	}
	return out, rows.Err()
}

func (s *Store) CreateSiteAlert(ctx context.Context, alert *domain.SiteAlert) (*domain.SiteAlert, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO site_alerts (
			site_id, code, new_ip, old_ip, new_ip_second, old_ip_second,
			new_mx, old_mx, new_mail_ip, old_mail_ip, difference_score,
			new_registrar, old_registrar, new_expiry, old_expiry
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at`,
		alert.SiteID, alert.Code, alert.NewIP, alert.OldIP,
		alert.NewIPSecond, alert.OldIPSecond, alert.NewMX, alert.OldMX,
		alert.NewMailIP, alert.OldMailIP, alert.DifferenceScore,
		alert.NewRegistrar, alert.OldRegistrar, alert.NewExpiry, alert.OldExpiry,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create site alert: %w", err)
	}
	return alert, nil
}

func (s *Store) RecentSiteAlerts(ctx context.Context, siteID int64, since time.Time, limit int) ([]domain.SiteAlert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, site_id, code, new_ip, old_ip, new_ip_second, old_ip_second,
		       new_mx, old_mx, new_mail_ip, old_mail_ip, difference_score,
		       new_registrar, old_registrar, new_expiry, old_expiry, status, created_at
		FROM site_alerts
		WHERE site_id = $1 AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`, siteID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent site alerts: %w", err)
	}
	defer rows.Close()

	return scanSiteAlerts(rows)
}

func (s *Store) ListSiteAlertsSince(ctx context.Context, since time.Time, limit int) ([]domain.SiteAlert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.site_id, a.code, a.new_ip, a.old_ip, a.new_ip_second, a.old_ip_second,
		       a.new_mx, a.old_mx, a.new_mail_ip, a.old_mail_ip, a.difference_score,
		       a.new_registrar, a.old_registrar, a.new_expiry, a.old_expiry, a.status, a.created_at,
		       w.domain
		FROM site_alerts a
		JOIN watched_sites w ON w.id = a.site_id
		WHERE a.created_at >= $1
		ORDER BY a.created_at DESC
		LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query site alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.SiteAlert
	for rows.Next() {
		var a domain.SiteAlert
		if err := rows.Scan(
			&a.ID, &a.SiteID, &a.Code, &a.NewIP, &a.OldIP, &a.NewIPSecond, &a.OldIPSecond,
			&a.NewMX, &a.OldMX, &a.NewMailIP, &a.OldMailIP, &a.DifferenceScore,
			&a.NewRegistrar, &a.OldRegistrar, &a.NewExpiry, &a.OldExpiry, &a.Status, &a.CreatedAt,
			&a.SiteDomain,
		); err != nil {
			return nil, fmt.Errorf("failed to scan site alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanSiteAlerts(rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}) ([]domain.SiteAlert, error) {
	var out []domain.SiteAlert
	for rows.Next() {
		var a domain.SiteAlert
		if err := rows.Scan(
			&a.ID, &a.SiteID, &a.Code, &a.NewIP, &a.OldIP, &a.NewIPSecond, &a.OldIPSecond,
			&a.NewMX, &a.OldMX, &a.NewMailIP, &a.OldMailIP, &a.DifferenceScore,
			&a.NewRegistrar, &a.OldRegistrar, &a.NewExpiry, &a.OldExpiry, &a.Status, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan site alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) LeakURLExists(ctx context.Context, keywordID int64, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM data_leak_alerts WHERE keyword_id = $1 AND url = $2)`,
		keywordID, url).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check leak url: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateLeakAlert(ctx context.Context, alert *domain.DataLeakAlert) (*domain.DataLeakAlert, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO data_leak_alerts (keyword_id, url, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		alert.KeywordID, alert.URL, alert.Content,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to create data leak alert: %w", err)
	}
	return alert, nil
}

func (s *Store) CreateDNSAlert(ctx context.Context, alert *domain.DNSAlert) (*domain.DNSAlert, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO dns_alerts (twisted_id)
		VALUES ($1)
		RETURNING id, created_at`,
		alert.TwistedID,
	).Scan(&alert.ID, &alert.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create dns alert: %w", err)
	}
	return alert, nil
}

func (s *Store) SummaryExistsSince(ctx context.Context, kind domain.SummaryKind, keyword string, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM summaries
			WHERE kind = $1 AND keywords = $2 AND created_at >= $3
		)`, string(kind), keyword, since).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check summary existence: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateSummary(ctx context.Context, sum *domain.Summary) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO summaries (kind, keywords, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		string(sum.Kind), sum.Keywords, sum.Text,
	).Scan(&sum.ID, &sum.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create summary: %w", err)
	}
	return nil
}

func (s *Store) PasteSeen(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM paste_ids WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check paste id: %w", err)
	}
	return exists, nil
}

func (s *Store) RecordPaste(ctx context.Context, id string) error {
	if _, err := s.db.Exec(ctx,
		`INSERT INTO paste_ids (id) VALUES ($1) ON CONFLICT DO NOTHING`, id); err != nil {
		return fmt.Errorf("failed to record paste id: %w", err)
	}
	return nil
}

func (s *Store) DeletePastesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM paste_ids WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale paste ids: %w", err)
	}
	return tag.RowsAffected(), nil
}
