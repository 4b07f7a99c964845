package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/wikisync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/wikisync/internal/core/domain"
)

// DatabaseFile is the name of the database inside the data directory.
const DatabaseFile = "records.db"

// maxParams bounds the number of bound parameters in one IN clause.
const maxParams = 500

const recordColumns = `id, document_id, space, item_type, attachment_page_id, attachment_page_url,
	title, title_vector, chunk, chunk_vector, last_modified_date, last_indexed_date, url`

// Store is a SQLite-backed record store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates the record store in dataDir.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("%w: data directory is required", domain.ErrConfigInvalid)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	path := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := migrate(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migration is one numbered schema step, e.g. 001_records.up.sql.
type migration struct {
	version int
	name    string
}

// pendingMigrations lists the up migrations newer than applied, oldest first.
func pendingMigrations(fsys fs.FS, applied int) ([]migration, error) {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}

	var pending []migration
	for _, name := range names {
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= applied {
			continue
		}
		pending = append(pending, migration{version: version, name: name})
	}
	slices.SortFunc(pending, func(a, b migration) int { return a.version - b.version })
	return pending, nil
}

// migrate applies each pending migration in its own transaction and
// records its version in schema_migrations.
func migrate(db *sql.DB, fsys fs.FS) error {
	const bookkeeping = `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`
	if _, err := db.Exec(bookkeeping); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	pending, err := pendingMigrations(fsys, applied)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}

	for _, m := range pending {
		body, err := fs.ReadFile(fsys, m.name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.name, err)
		}
	}
	return nil
}

// Put stores or replaces a record.
func (s *Store) Put(ctx context.Context, r domain.IndexRecord) error {
	if r.ID == "" {
		return domain.ErrInvalidInput
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document_id = excluded.document_id,
			space = excluded.space,
			item_type = excluded.item_type,
			attachment_page_id = excluded.attachment_page_id,
			attachment_page_url = excluded.attachment_page_url,
			title = excluded.title,
			title_vector = excluded.title_vector,
			chunk = excluded.chunk,
			chunk_vector = excluded.chunk_vector,
			last_modified_date = excluded.last_modified_date,
			last_indexed_date = excluded.last_indexed_date,
			url = excluded.url
	`, r.ID, r.DocumentID, r.Space, r.ItemType, r.AttachmentPageID, r.AttachmentPageURL,
		r.Title, float32SliceToBytes(r.TitleVector), r.Chunk, float32SliceToBytes(r.ChunkVector),
		nullTime(r.LastModifiedDate), nullTime(r.LastIndexedDate), r.URL)

	if err != nil {
		return fmt.Errorf("saving record: %w", err)
	}
	return nil
}

// Get retrieves a record by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.IndexRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)

	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return r, err
}

// GetMany retrieves the records with the given IDs. Missing IDs are skipped.
func (s *Store) GetMany(ctx context.Context, ids []string) (map[string]domain.IndexRecord, error) {
	records := make(map[string]domain.IndexRecord, len(ids))
	for start := 0; start < len(ids); start += maxParams {
		batch := ids[start:min(start+maxParams, len(ids))]
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+recordColumns+` FROM records WHERE id IN (`+placeholders(len(batch))+`)`,
			anySlice(batch)...)
		if err != nil {
			return nil, fmt.Errorf("querying records: %w", err)
		}
		found, err := scanRecords(rows)
		if err != nil {
			return nil, err
		}
		for _, r := range found {
			records[r.ID] = r
		}
	}
	return records, nil
}

// Search returns the records matching the filter ordered by ID.
func (s *Store) Search(ctx context.Context, filter domain.RecordFilter) ([]domain.IndexRecord, error) {
	where, args := whereClause(filter)
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	return scanRecords(rows)
}

// whereClause translates a filter into a WHERE clause with bound arguments.
func whereClause(f domain.RecordFilter) (string, []any) {
	if f.IsEmpty() {
		return "", nil
	}
	conds := []struct {
		expr  string
		value string
	}{
		{"document_id = ?", f.DocumentID},
		{"attachment_page_id = ?", f.AttachmentPageID},
		{"space = ?", f.Space},
		{"item_type <> ?", f.ExcludeItemType},
	}

	var exprs []string
	var args []any
	for _, c := range conds {
		if c.value == "" {
			continue
		}
		exprs = append(exprs, c.expr)
		args = append(args, c.value)
	}
	return " WHERE " + strings.Join(exprs, " AND "), args
}

// Delete removes records by ID. Unknown IDs are ignored.
func (s *Store) Delete(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += maxParams {
		batch := ids[start:min(start+maxParams, len(ids))]
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM records WHERE id IN (`+placeholders(len(batch))+`)`, anySlice(batch)...)
		if err != nil {
			return fmt.Errorf("deleting records: %w", err)
		}
	}
	return nil
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// ChunkVectors calls fn with the chunk vector of every record that has one.
func (s *Store) ChunkVectors(ctx context.Context, fn func(id string, vector []float32) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, chunk_vector FROM records WHERE chunk_vector IS NOT NULL")
	if err != nil {
		return fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return fmt.Errorf("scanning vector: %w", err)
		}
		if err := fn(id, bytesToFloat32Slice(blob)); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating vectors: %w", err)
	}
	return nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("clearing records: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord scans a single record row.
func scanRecord(row scanner) (*domain.IndexRecord, error) {
	var r domain.IndexRecord
	var titleVector, chunkVector []byte
	var modified, indexed sql.NullTime

	if err := row.Scan(&r.ID, &r.DocumentID, &r.Space, &r.ItemType, &r.AttachmentPageID,
		&r.AttachmentPageURL, &r.Title, &titleVector, &r.Chunk, &chunkVector,
		&modified, &indexed, &r.URL); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	r.TitleVector = bytesToFloat32Slice(titleVector)
	r.ChunkVector = bytesToFloat32Slice(chunkVector)
	if modified.Valid {
		r.LastModifiedDate = modified.Time.UTC()
	}
	if indexed.Valid {
		r.LastIndexedDate = indexed.Time.UTC()
	}
	return &r, nil
}

// scanRecords scans and closes rows.
func scanRecords(rows *sql.Rows) ([]domain.IndexRecord, error) {
	defer rows.Close()

	var records []domain.IndexRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func anySlice(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// float32SliceToBytes converts []float32 to a little-endian byte slice.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
