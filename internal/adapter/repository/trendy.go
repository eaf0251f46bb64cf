package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hive-corporation/nightwatch/internal/core/domain"
)

func (s *Store) FindTrendyWord(ctx context.Context, name string) (*domain.TrendyWord, error) {
	var w domain.TrendyWord
	err := s.db.QueryRow(ctx, `
		SELECT id, name, occurrences, score, first_seen, last_updated
		FROM trendy_words WHERE name = $1`, name,
	).Scan(&w.ID, &w.Name, &w.Occurrences, &w.Score, &w.FirstSeen, &w.LastUpdated)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &w, nil
}

// CreateTrendyWord inserts the word and links its post URLs in one
// transaction. A unique violation means another worker created it first; the
// existing row is returned.
func (s *Store) CreateTrendyWord(ctx context.Context, word *domain.TrendyWord, urls []string) (*domain.TrendyWord, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO trendy_words (name, occurrences)
		VALUES ($1, $2)
		RETURNING id, first_seen, last_updated`,
		word.Name, word.Occurrences,
	).Scan(&word.ID, &word.FirstSeen, &word.LastUpdated)
	if err != nil {
		if isUniqueViolation(err) {
			return s.FindTrendyWord(ctx, word.Name)
		}
		return nil, fmt.Errorf("failed to create trendy word: %w", err)
	}

	for _, u := range urls {
		var urlID int64
		err = tx.QueryRow(ctx, `
			INSERT INTO post_urls (url) VALUES ($1)
			ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
			RETURNING id`, u,
		).Scan(&urlID)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert post url: %w", err)
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO trendy_word_urls (word_id, url_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, word.ID, urlID); err != nil {
			return nil, fmt.Errorf("failed to link post url: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit trendy word: %w", err)
	}
	return word, nil
}

// LinkPostURL attaches url to the word, reporting whether a new link was
// created.
func (s *Store) LinkPostURL(ctx context.Context, wordID int64, url string) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var urlID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO post_urls (url) VALUES ($1)
		ON CONFLICT (url) DO UPDATE SET url = EXCLUDED.url
		RETURNING id`, url,
	).Scan(&urlID)
	if err != nil {
		return false, fmt.Errorf("failed to upsert post url: %w", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO trendy_word_urls (word_id, url_id)
		VALUES ($1, $2) ON CONFLICT DO NOTHING`, wordID, urlID)
	if err != nil {
		return false, fmt.Errorf("failed to link post url: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit link: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) IncrementOccurrences(ctx context.Context, wordID int64, delta int) error {
	if _, err := s.db.Exec(ctx, `
		UPDATE trendy_words
		SET occurrences = occurrences + $2, last_updated = now()
		WHERE id = $1`, wordID, delta); err != nil {
		return fmt.Errorf("failed to increment occurrences: %w", err)
	}
	return nil
}

func (s *Store) UpdateScore(ctx context.Context, wordID int64, score float64) error {
	if _, err := s.db.Exec(ctx,
		`UPDATE trendy_words SET score = $2 WHERE id = $1`, wordID, score); err != nil {
		return fmt.Errorf("failed to update score: %w", err)
	}
	return nil
}

func (s *Store) ListPostURLs(ctx context.Context, wordID int64) ([]domain.PostURL, error) {
	rows, err := s.db.Query(ctx, `
		SELECT p.id, p.url, p.first_seen
		FROM post_urls p
		JOIN trendy_word_urls l ON l.url_id = p.id
		WHERE l.word_id = $1
		ORDER BY p.first_seen`, wordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query post urls: %w", err)
	}
	defer rows.Close()

	var out []domain.PostURL
	for rows.Next() {
		var p domain.PostURL
		if err := rows.Scan(&p.ID, &p.URL, &p.FirstSeen); err != nil {
			return nil, fmt.Errorf("failed to scan post url: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListTrendyWords returns words newest-first. A limit of zero or less means
// no limit.
func (s *Store) ListTrendyWords(ctx context.Context, limit int) ([]domain.TrendyWord, error) {
	query := `
		SELECT id, name, occurrences, score, first_seen, last_updated
		FROM trendy_words
		ORDER BY last_updated DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trendy words: %w", err)
	}
	defer rows.Close()

	var out []domain.TrendyWord
	for rows.Next() {
		var w domain.TrendyWord
		if err := rows.Scan(&w.ID, &w.Name, &w.Occurrences, &w.Score, &w.FirstSeen, &w.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan trendy word: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// DeleteTrendyWordsBefore removes stale words, then prunes post URLs no
// longer referenced by any word.
func (s *Store) DeleteTrendyWordsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM trendy_words WHERE first_seen < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale trendy words: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM post_urls p
		WHERE NOT EXISTS (SELECT 1 FROM trendy_word_urls l WHERE l.url_id = p.id)`); err != nil {
		return 0, fmt.Errorf("failed to prune dangling post urls: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	return tag.RowsAffected(), nil
}
