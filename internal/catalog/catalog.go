package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"imgpkg/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes; older catalogs are
// rejected and must be rebuilt with a scan.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("catalog schema version mismatch")

// ErrNotFound reports an unknown package id.
var ErrNotFound = errors.New("catalog: package not found")

// Catalog is the SQLite-backed package index.
type Catalog struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Record is the catalog row for one package.
type Record struct {
	ID              string     `json:"id" yaml:"id"`
	Path            string     `json:"path" yaml:"path"`
	Original        string     `json:"original" yaml:"original"`
	HasMaster       bool       `json:"has_master" yaml:"has_master"`
	HasPreview      bool       `json:"has_preview" yaml:"has_preview"`
	HasThumbnail    bool       `json:"has_thumbnail" yaml:"has_thumbnail"`
	Status          string     `json:"status" yaml:"status"`
	LastValid       *bool      `json:"last_valid,omitempty" yaml:"last_valid,omitempty"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty" yaml:"last_validated_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Validation is one recorded validation outcome.
type Validation struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	PackageID string    `json:"package_id" yaml:"package_id"`
	Valid     bool      `json:"valid" yaml:"valid"`
	Problems  []string  `json:"problems" yaml:"problems"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Open opens the catalog configured in cfg, creating it when absent.
func Open(cfg *config.Config) (*Catalog, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.CatalogPath())
}

// OpenPath opens or creates the catalog database at dbPath.
func OpenPath(dbPath string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure catalog directory: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection and batch workers share this handle.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	c := &Catalog{db: db, path: dbPath, now: time.Now}
	if err := c.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// Path returns the database file location.
func (c *Catalog) Path() string { return c.path }

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Catalog) initSchema(ctx context.Context) error {
	var tableExists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return c.createSchema(ctx)
	}

	var version int
	if err := c.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s and rescan)",
			ErrSchemaMismatch, version, schemaVersion, c.path)
	}
	return nil
}

func (c *Catalog) createSchema(ctx context.Context) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// NewRunID returns an identifier grouping the validations of one scan.
func NewRunID() string {
	return uuid.NewString()
}

// Upsert records the current state of a package. Validation columns are
// left untouched.
func (c *Catalog) Upsert(ctx context.Context, r Record) error {
	_, err := c.db.ExecContext(ctx, `
        INSERT INTO packages (id, path, original, has_master, has_preview, has_thumbnail, status, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            path = excluded.path,
            original = excluded.original,
            has_master = excluded.has_master,
            has_preview = excluded.has_preview,
            has_thumbnail = excluded.has_thumbnail,
            status = excluded.status,
            updated_at = excluded.updated_at`,
		r.ID,
		r.Path,
		nullableString(r.Original),
		boolToInt(r.HasMaster),
		boolToInt(r.HasPreview),
		boolToInt(r.HasThumbnail),
		nullableString(r.Status),
		c.timestamp(),
	)
	if err != nil {
		return fmt.Errorf("upsert package %s: %w", r.ID, err)
	}
	return nil
}

// RecordValidation stores a validation outcome and updates the package row.
// The package must already be known.
func (c *Catalog) RecordValidation(ctx context.Context, v Validation) error {
	problems := v.Problems
	if problems == nil {
		problems = []string{}
	}
	encoded, err := json.Marshal(problems)
	if err != nil {
		return fmt.Errorf("marshal problems: %w", err)
	}
	stamp := c.timestamp()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin validation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE packages SET last_valid = ?, last_validated_at = ?, updated_at = ? WHERE id = ?`,
		boolToInt(v.Valid), stamp, stamp, v.PackageID,
	)
	if err != nil {
		return fmt.Errorf("update package %s: %w", v.PackageID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, v.PackageID)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO validations (run_id, package_id, valid, problems, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.RunID, v.PackageID, boolToInt(v.Valid), string(encoded), stamp,
	); err != nil {
		return fmt.Errorf("insert validation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit validation: %w", err)
	}
	return nil
}

const recordColumns = "id, path, original, has_master, has_preview, has_thumbnail, status, last_valid, last_validated_at, updated_at"

// Get returns the record for id.
func (c *Catalog) Get(ctx context.Context, id string) (*Record, error) {
	row := c.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM packages WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get package: %w", err)
	}
	return r, nil
}

// List returns every record ordered by id. With invalidOnly set, only
// packages whose last validation failed are returned.
func (c *Catalog) List(ctx context.Context, invalidOnly bool) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM packages`
	if invalidOnly {
		query += ` WHERE last_valid = 0`
	}
	query += ` ORDER BY id`
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan package: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Validations returns the recorded validations of a package, newest first.
func (c *Catalog) Validations(ctx context.Context, packageID string) ([]Validation, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT run_id, package_id, valid, problems, created_at FROM validations WHERE package_id = ? ORDER BY id DESC`,
		packageID,
	)
	if err != nil {
		return nil, fmt.Errorf("list validations: %w", err)
	}
	defer rows.Close()

	var out []Validation
	for rows.Next() {
		var (
			v        Validation
			valid    int
			problems string
			created  string
		)
		if err := rows.Scan(&v.RunID, &v.PackageID, &valid, &problems, &created); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		v.Valid = valid != 0
		if err := json.Unmarshal([]byte(problems), &v.Problems); err != nil {
			return nil, fmt.Errorf("decode problems: %w", err)
		}
		v.CreatedAt = parseTime(created)
		out = append(out, v)
	}
	return out, rows.Err()
}

// Remove deletes a package and its validations.
func (c *Catalog) Remove(ctx context.Context, id string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM packages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("remove package %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (c *Catalog) timestamp() string {
	return c.now().UTC().Format(time.RFC3339Nano)
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		r            Record
		original     sql.NullString
		hasMaster    int
		hasPreview   int
		hasThumbnail int
		status       sql.NullString
		lastValid    sql.NullInt64
		validatedRaw sql.NullString
		updatedRaw   string
	)
	if err := scanner.Scan(
		&r.ID,
		&r.Path,
		&original,
		&hasMaster,
		&hasPreview,
		&hasThumbnail,
		&status,
		&lastValid,
		&validatedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	r.Original = original.String
	r.HasMaster = hasMaster != 0
	r.HasPreview = hasPreview != 0
	r.HasThumbnail = hasThumbnail != 0
	r.Status = status.String
	if lastValid.Valid {
		valid := lastValid.Int64 != 0
		r.LastValid = &valid
	}
	if validatedRaw.Valid {
		ts := parseTime(validatedRaw.String)
		r.LastValidatedAt = &ts
	}
	r.UpdatedAt = parseTime(updatedRaw)
	return &r, nil
}

func parseTime(raw string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
