package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the personality profile in a single-row SQLite table.
// Saves are coalesced by the caller; this store just writes what it is given.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the profile database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "create profile db dir")
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)")
	if err != nil {
		return nil, eris.Wrap(err, "open profile db")
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "migrate profile db")
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS personality (
		device_id      TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		trust_score    REAL NOT NULL,
		traits         TEXT NOT NULL,
		last_saved_at  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the most recently saved profile, if any. A profile written by
// a newer schema than this build understands is reported as an error rather
// than partially decoded.
func (s *SQLiteStore) Load(ctx context.Context) (*PersonalityProfile, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT device_id, schema_version, trust_score, traits, last_saved_at
		FROM personality
		ORDER BY last_saved_at DESC
		LIMIT 1`)

	var (
		p         PersonalityProfile
		traitsRaw string
		savedAt   string
	)
	err := row.Scan(&p.DeviceID, &p.SchemaVersion, &p.TrustScore, &traitsRaw, &savedAt)
	if eris.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "load profile")
	}

	if p.SchemaVersion > SchemaVersion {
		return nil, false, eris.Errorf("profile schema %d is newer than supported %d", p.SchemaVersion, SchemaVersion)
	}

	if err := json.Unmarshal([]byte(traitsRaw), &p.TraitCounters); err != nil {
		return nil, false, eris.Wrap(err, "decode trait counters")
	}
	if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
		p.LastSavedAt = t
	}

	return &p, true, nil
}

// Save upserts the profile keyed by device identity.
func (s *SQLiteStore) Save(ctx context.Context, p *PersonalityProfile) error {
	traits, err := json.Marshal(p.TraitCounters)
	if err != nil {
		return eris.Wrap(err, "encode trait counters")
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO personality (device_id, schema_version, trust_score, traits, last_saved_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			schema_version = excluded.schema_version,
			trust_score    = excluded.trust_score,
			traits         = excluded.traits,
			last_saved_at  = excluded.last_saved_at`,
		p.DeviceID, SchemaVersion, p.TrustScore, string(traits), now.Format(time.RFC3339Nano))
	if err != nil {
		return eris.Wrap(err, "save profile")
	}

	p.LastSavedAt = now
	return nil
}

// Reset deletes every saved profile.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM personality`); err != nil {
		return eris.Wrap(err, "reset profiles")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
