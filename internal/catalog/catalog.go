// Package catalog keeps a local record of every generation a target holds,
// in production order.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
	"github.com/openmined/syftbackup/internal/db"
	"github.com/openmined/syftbackup/internal/engine"
	"github.com/openmined/syftbackup/internal/generation"
)

var ErrNotOpen = errors.New("catalog: not open")

var schema = []string{
	`CREATE TABLE IF NOT EXISTS generations (
		seq INTEGER PRIMARY KEY,
		prefix TEXT NOT NULL,
		kind TEXT NOT NULL,
		gen_time INTEGER NOT NULL, -- unix seconds, UTC
		signature_name TEXT NOT NULL,
		content_name TEXT NOT NULL,
		pass_id TEXT NOT NULL,
		stats TEXT NOT NULL, -- JSON
		created_at TEXT NOT NULL, -- RFC3339
		UNIQUE (prefix, kind, gen_time)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_generations_prefix ON generations(prefix, gen_time)`,
}

// Record describes one stored generation.
type Record struct {
	Seq           int64
	ID            generation.Identity
	SignatureName string
	ContentName   string
	PassID        string
	Stats         engine.Stats
	CreatedAt     time.Time
}

type dbRecord struct {
	Seq           int64  `db:"seq"`
	Prefix        string `db:"prefix"`
	Kind          string `db:"kind"`
	GenTime       int64  `db:"gen_time"`
	SignatureName string `db:"signature_name"`
	ContentName   string `db:"content_name"`
	PassID        string `db:"pass_id"`
	Stats         string `db:"stats"`
	CreatedAt     string `db:"created_at"`
}

func (r dbRecord) toRecord() (*Record, error) {
	rec := &Record{
		Seq:           r.Seq,
		ID:            generation.NewIdentity(r.Prefix, generation.RoleSignatures, generation.Kind(r.Kind), time.Unix(r.GenTime, 0)),
		SignatureName: r.SignatureName,
		ContentName:   r.ContentName,
		PassID:        r.PassID,
	}
	if err := json.Unmarshal([]byte(r.Stats), &rec.Stats); err != nil {
		return nil, fmt.Errorf("decode stats of generation %d: %w", r.Seq, err)
	}
	createdAt, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at of generation %d: %w", r.Seq, err)
	}
	rec.CreatedAt = createdAt
	return rec, nil
}

const selectColumns = `SELECT seq, prefix, kind, gen_time, signature_name, content_name, pass_id, stats, created_at FROM generations`

// Catalog is a sqlite backed generation log.
type Catalog struct {
	db     *sqlx.DB
	dbPath string
	now    func() time.Time
}

func New(dbPath string) *Catalog {
	return &Catalog{dbPath: dbPath, now: time.Now}
}

// Open connects to the database and creates the schema when missing.
func (c *Catalog) Open() error {
	if c.db != nil {
		return fmt.Errorf("catalog already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(c.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	if err := db.Migrate(conn, schema...); err != nil {
		conn.Close()
		return fmt.Errorf("initialize catalog schema: %w", err)
	}

	c.db = conn
	return nil
}

func (c *Catalog) Close() error {
	if c.db == nil {
		return ErrNotOpen
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		slog.Error("failed to close catalog", "error", err)
		return err
	}
	return nil
}

// Add stores rec under the next sequence number and sets rec.Seq.
func (c *Catalog) Add(rec *Record) error {
	if c.db == nil {
		return ErrNotOpen
	}
	if rec == nil {
		return fmt.Errorf("cannot add nil record")
	}

	stats, err := json.Marshal(rec.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now().UTC().Truncate(time.Second)
	}

	tx, err := c.db.Beginx()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.Get(&seq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM generations"); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	row := dbRecord{
		Seq:           seq,
		Prefix:        rec.ID.Prefix,
		Kind:          string(rec.ID.Kind),
		GenTime:       rec.ID.Time.Unix(),
		SignatureName: rec.SignatureName,
		ContentName:   rec.ContentName,
		PassID:        rec.PassID,
		Stats:         string(stats),
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
	}
	query := `INSERT INTO generations (seq, prefix, kind, gen_time, signature_name, content_name, pass_id, stats, created_at)
	          VALUES (:seq, :prefix, :kind, :gen_time, :signature_name, :content_name, :pass_id, :stats, :created_at)`
	if _, err := tx.NamedExec(query, row); err != nil {
		return fmt.Errorf("add generation %s: %w", rec.SignatureName, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	rec.Seq = seq
	slog.Debug("catalog add", "seq", seq, "name", rec.SignatureName)
	return nil
}

// Get returns the record of a generation, or nil when it was never recorded.
func (c *Catalog) Get(prefix string, kind generation.Kind, t time.Time) (*Record, error) {
	if c.db == nil {
		return nil, ErrNotOpen
	}

	var row dbRecord
	err := c.db.Get(&row, selectColumns+" WHERE prefix = ? AND kind = ? AND gen_time = ?", prefix, string(kind), t.Unix())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query generation: %w", err)
	}
	return row.toRecord()
}

// List returns the records of prefix in sequence order.
func (c *Catalog) List(prefix string) ([]*Record, error) {
	if c.db == nil {
		return nil, ErrNotOpen
	}

	var rows []dbRecord
	if err := c.db.Select(&rows, selectColumns+" WHERE prefix = ? ORDER BY seq", prefix); err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}

	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toRecord()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Delete forgets a generation. Deleting an unknown generation is not an error.
func (c *Catalog) Delete(prefix string, kind generation.Kind, t time.Time) error {
	if c.db == nil {
		return ErrNotOpen
	}
	_, err := c.db.Exec("DELETE FROM generations WHERE prefix = ? AND kind = ? AND gen_time = ?", prefix, string(kind), t.Unix())
	if err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}
