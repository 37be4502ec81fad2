// Package archive persists final transcripts and translation results to
// PostgreSQL. Writes are issued best-effort by the pipeline; a broken archive
// never blocks live translation.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/MrWong99/polyglossa/internal/pipeline"
	"github.com/MrWong99/polyglossa/pkg/provider/stt"
)

// Schema is the SQL DDL for the archive tables. Execute it via
// [Store.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS transcripts (
    id          BIGSERIAL PRIMARY KEY,
    speaker     TEXT NOT NULL,
    text        TEXT NOT NULL,
    confidence  DOUBLE PRECISION NOT NULL DEFAULT 0,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_transcripts_speaker ON transcripts(speaker);

CREATE TABLE IF NOT EXISTS translations (
    id              BIGSERIAL PRIMARY KEY,
    speaker         TEXT NOT NULL,
    language        TEXT NOT NULL,
    source_text     TEXT NOT NULL,
    translated_text TEXT NOT NULL,
    translated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_translations_speaker ON translations(speaker);
CREATE INDEX IF NOT EXISTS idx_translations_language ON translations(language);
`

// DB is the database interface used by [Store]. Both *pgxpool.Pool and
// *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store writes transcripts and translations to PostgreSQL.
type Store struct {
	db DB
}

// Compile-time interface check.
var _ pipeline.Archiver = (*Store)(nil)

// NewStore creates a new [Store] that uses the given database connection or
// pool. The caller is responsible for calling [Store.Migrate] to ensure the
// schema exists before issuing queries.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// transcripts and translations tables if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("archive: migrate: %w", err)
	}
	return nil
}

// SaveTranscript inserts a final transcript for the given speaker.
func (s *Store) SaveTranscript(ctx context.Context, speaker string, tr stt.Transcript) error {
	const query = `
		INSERT INTO transcripts (speaker, text, confidence, duration_ms)
		VALUES ($1, $2, $3, $4)`

	_, err := s.db.Exec(ctx, query, speaker, tr.Text, tr.Confidence, tr.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("archive: save transcript: %w", err)
	}
	return nil
}

// SaveTranslation inserts a translation result for the given speaker.
func (s *Store) SaveTranslation(ctx context.Context, speaker string, res pipeline.TranslationResult) error {
	const query = `
		INSERT INTO translations (speaker, language, source_text, translated_text, translated_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, query, speaker, res.Language, res.SourceText, res.TranslatedText, translatedAt(res))
	if err != nil {
		return fmt.Errorf("archive: save translation: %w", err)
	}
	return nil
}

// RecentTranslations returns the most recent translations for a speaker,
// newest first, limited to at most limit rows.
func (s *Store) RecentTranslations(ctx context.Context, speaker string, limit int) ([]pipeline.TranslationResult, error) {
	const query = `
		SELECT language, source_text, translated_text, translated_at
		FROM translations
		WHERE speaker = $1
		ORDER BY translated_at DESC
		LIMIT $2`

	rows, err := s.db.Query(ctx, query, speaker, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent translations: %w", err)
	}
	defer rows.Close()

	var results []pipeline.TranslationResult
	for rows.Next() {
		var res pipeline.TranslationResult
		if err := rows.Scan(&res.Language, &res.SourceText, &res.TranslatedText, &res.TranslatedAt); err != nil {
			return nil, fmt.Errorf("archive: recent translations scan: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: recent translations: %w", err)
	}
	return results, nil
}

// translatedAt returns the result timestamp, defaulting to now when the
// caller left it zero.
func translatedAt(res pipeline.TranslationResult) time.Time {
	if res.TranslatedAt.IsZero() {
		return time.Now()
	}
	return res.TranslatedAt
}
