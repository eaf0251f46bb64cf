package repository

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

const siteColumns = `
	id, domain, ip_monitoring, content_monitoring, mail_monitoring, expiry,
	last_ip, last_ip_second, last_mail_ip, last_mx, last_content_hash,
	web_status, monitored, ticket_id, registrar, domain_expiry, legitimacy, created_at`

func scanSite(row interface{ Scan(dest ...any) error }) (domain.WatchedSite, error) {
	var s domain.WatchedSite
	err := row.Scan(
		&s.ID, &s.Domain, &s.IPMonitoring, &s.ContentMonitoring, &s.MailMonitoring,
		&s.Expiry, &s.LastIP, &s.LastIPSecond, &s.LastMailIP, &s.LastMX,
		&s.LastContentHash, &s.WebStatus, &s.Monitored, &s.TicketID,
		&s.Registrar, &s.DomainExpiry, &s.Legitimacy, &s.CreatedAt,
	)
	return s, err
}

func (s *Store) ListActiveSites(ctx context.Context, now time.Time) ([]domain.WatchedSite, error) {
	query := `SELECT` + siteColumns + `
		FROM watched_sites
		WHERE monitored AND (expiry IS NULL OR expiry > $1)
		ORDER BY domain`

	rows, err := s.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query active sites: %w", err)
	}
	defer rows.Close()

	var sites []domain.WatchedSite
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) ListAllSites(ctx context.Context) ([]domain.WatchedSite, error) {
	query := `SELECT` + siteColumns + ` FROM watched_sites ORDER BY domain`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	var sites []domain.WatchedSite
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) FindSiteByDomain(ctx context.Context, dom string) (*domain.WatchedSite, error) {
	query := `SELECT` + siteColumns + ` FROM watched_sites WHERE domain = $1`

	site, err := scanSite(s.db.QueryRow(ctx, query, dom))
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &site, nil
}

func (s *Store) UpdateSiteState(ctx context.Context, site *domain.WatchedSite) error {
	query := `
		UPDATE watched_sites
		SET last_ip = $2, last_ip_second = $3, last_mail_ip = $4, last_mx = $5,
		    last_content_hash = $6, web_status = $7
		WHERE id = $1`

	_, err := s.db.Exec(ctx, query,
		site.ID, site.LastIP, site.LastIPSecond, site.LastMailIP,
		site.LastMX, site.LastContentHash, site.WebStatus,
	)
	if err != nil {
		return fmt.Errorf("failed to update site state: %w", err)
	}
	return nil
}

func (s *Store) UpdateSiteRDAP(ctx context.Context, siteID int64, registrar string, expiry *time.Time, legitimacy int) error {
	query := `
		UPDATE watched_sites
		SET registrar = $2, domain_expiry = $3, legitimacy = $4
		WHERE id = $1`

	if _, err := s.db.Exec(ctx, query, siteID, registrar, expiry, legitimacy); err != nil {
		return fmt.Errorf("failed to update site rdap data: %w", err)
	}
	return nil
}

func (s *Store) UpdateSiteTicket(ctx context.Context, siteID int64, ticketID string) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE watched_sites SET ticket_id = $2 WHERE id = $1`, siteID, ticketID); err != nil {
		return fmt.Errorf("failed to update site ticket: %w", err)
	}
	return nil
}

func (s *Store) SiteExists(ctx context.Context, dom string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watched_sites WHERE domain = $1)`, dom).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check site existence: %w", err)
	}
	return exists, nil
}

func (s *Store) ListWatchedDNS(ctx context.Context) ([]domain.WatchedDNS, error) {
	rows, err := s.db.Query(ctx, `SELECT id, domain, created_at FROM watched_dns ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched dns: %w", err)
	}
	defer rows.Close()

	var out []domain.WatchedDNS
	for rows.Next() {
		var d domain.WatchedDNS
		if err := rows.Scan(&d.ID, &d.Domain, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watched dns: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) WatchedDNSExists(ctx context.Context, dom string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM watched_dns WHERE domain = $1)`, dom).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check watched dns existence: %w", err)
	}
	return exists, nil
}

func (s *Store) ListWatchedKeywords(ctx context.Context) ([]domain.WatchedKeyword, error) {
	rows, err := s.db.Query(ctx, `SELECT id, name, created_at FROM watched_keywords ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched keywords: %w", err)
	}
	defer rows.Close()

	var out []domain.WatchedKeyword
	for rows.Next() {
		var k domain.WatchedKeyword
		if err := rows.Scan(&k.ID, &k.Name, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watched keyword: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func (s *Store) ListKeywords(ctx context.Context) ([]domain.Keyword, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, name, is_regex, regex_pattern, created_at FROM keywords ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	var out []domain.Keyword
	for rows.Next() {
		var k domain.Keyword
		if err := rows.Scan(&k.ID, &k.Name, &k.IsRegex, &k.RegexPattern, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan keyword: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// CreateKeyword validates regex patterns at write time: a keyword flagged
// is_regex with a pattern that does not compile is rejected.
func (s *Store) CreateKeyword(ctx context.Context, kw *domain.Keyword) error {
	if kw.IsRegex {
		if _, err := regexp.Compile(kw.RegexPattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO keywords (name, is_regex, regex_pattern)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		kw.Name, kw.IsRegex, kw.RegexPattern,
	).Scan(&kw.ID, &kw.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create keyword: %w", err)
	}
	return nil
}

func (s *Store) ListRSSSources(ctx context.Context) ([]domain.RSSSource, error) {
	rows, err := s.db.Query(ctx, `SELECT id, url, confidence, created_at FROM rss_sources`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rss sources: %w", err)
	}
	defer rows.Close()

	var out []domain.RSSSource
	for rows.Next() {
		var src domain.RSSSource
		if err := rows.Scan(&src.ID, &src.URL, &src.Confidence, &src.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rss source: %w", err)
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *Store) ListBannedWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT name FROM banned_words`)
	if err != nil {
		return nil, fmt.Errorf("failed to query banned words: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan banned word: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (s *Store) ListLegitimateDomains(ctx context.Context) ([]domain.LegitimateDomain, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, domain, ticket_id, contact, comments, expiry,
		       domain_created_at, registrar, repurchased, created_at
		FROM legitimate_domains ORDER BY domain`)
	if err != nil {
		return nil, fmt.Errorf("failed to query legitimate domains: %w", err)
	}
	defer rows.Close()

	var out []domain.LegitimateDomain
	for rows.Next() {
		var d domain.LegitimateDomain
		if err := rows.Scan(&d.ID, &d.Domain, &d.TicketID, &d.Contact, &d.Comments,
			&d.Expiry, &d.DomainCreatedAt, &d.Registrar, &d.Repurchased, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan legitimate domain: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) UpdateLegitimateDomainRDAP(ctx context.Context, id int64, registrar string, expiry *time.Time) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE legitimate_domains SET registrar = $2, expiry = $3 WHERE id = $1`,
		id, registrar, expiry); err != nil {
		return fmt.Errorf("failed to update legitimate domain: %w", err)
	}
	return nil
}

func (s *Store) ListSubscribers(ctx context.Context, source string) ([]domain.Subscriber, error) {
	rows, err := s.db.Query(ctx, `
		SELECT user_id, email, slack, citadel, thehive, email_on
		FROM subscribers WHERE source = $1`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscriber
	for rows.Next() {
		var sub domain.Subscriber
		if err := rows.Scan(&sub.UserID, &sub.Email, &sub.Slack, &sub.Citadel, &sub.TheHive, &sub.EmailOn); err != nil {
			return nil, fmt.Errorf("failed to scan subscriber: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}
