package runner

import (
	"database/sql"
	"time"

	"github.com/teranos/metronome/errors"
)

// DefinitionStore handles persistence of job definitions.
type DefinitionStore struct {
	db *sql.DB
}

// NewDefinitionStore creates a new definition store.
func NewDefinitionStore(db *sql.DB) *DefinitionStore {
	return &DefinitionStore{db: db}
}

const definitionColumns = `id, kind, name, enabled, interval_minutes, last_executed_at, last_success, created_at, updated_at`

// LoadAll returns every job definition, ordered by kind.
func (s *DefinitionStore) LoadAll() ([]*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM job_definitions ORDER BY kind ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load job definitions")
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error iterating job definitions")
	}

	return defs, nil
}

// GetByKind retrieves the definition for a job kind.
// Returns an error wrapping errors.ErrNotFound if no row exists.
func (s *DefinitionStore) GetByKind(kind string) (*Definition, error) {
	query := `SELECT ` + definitionColumns + ` FROM job_definitions WHERE kind = ?`

	row := s.db.QueryRow(query, kind)
	def, err := scanDefinition(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "job definition for kind %q", kind)
		}
		return nil, err
	}

	return def, nil
}

// Insert creates a new definition row and fills in the generated ID.
func (s *DefinitionStore) Insert(def *Definition) error {
	now := time.Now().UTC()
	if def.CreatedAt.IsZero() {
		def.CreatedAt = now
	}
	def.UpdatedAt = now

	query := `
		INSERT INTO job_definitions (
			kind, name, enabled, interval_minutes,
			last_executed_at, last_success,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		def.Kind,
		def.Name,
		def.Enabled,
		int(def.Interval/time.Minute),
		def.LastExecutedAt.UTC().Format(time.RFC3339),
		def.LastSuccess,
		def.CreatedAt.Format(time.RFC3339),
		def.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return errors.Wrapf(err, "failed to insert job definition %q", def.Kind)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.Wrap(err, "failed to read inserted definition id")
	}
	def.ID = id

	return nil
}

// Update persists changes to an existing definition.
func (s *DefinitionStore) Update(def *Definition) error {
	def.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE job_definitions
		SET name = ?,
		    enabled = ?,
		    interval_minutes = ?,
		    last_executed_at = ?,
		    last_success = ?,
		    updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query,
		def.Name,
		def.Enabled,
		int(def.Interval/time.Minute),
		def.LastExecutedAt.UTC().Format(time.RFC3339),
		def.LastSuccess,
		def.UpdatedAt.Format(time.RFC3339),
		def.ID,
	)
	if err != nil {
		return errors.Wrapf(err, "failed to update job definition %q", def.Kind)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to check rows affected")
	}
	if rows == 0 {
		return errors.Wrapf(errors.ErrNotFound, "job definition %d", def.ID)
	}

	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scanning.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row scanner) (*Definition, error) {
	var def Definition
	var intervalMinutes int
	var lastExecutedAt, createdAt, updatedAt string

	err := row.Scan(
		&def.ID,
		&def.Kind,
		&def.Name,
		&def.Enabled,
		&intervalMinutes,
		&lastExecutedAt,
		&def.LastSuccess,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan job definition")
	}

	def.Interval = time.Duration(intervalMinutes) * time.Minute

	// Parse timestamps (fail loudly - a bad row indicates schema drift)
	def.LastExecutedAt, err = time.Parse(time.RFC3339, lastExecutedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse last_executed_at for definition %q", def.Kind)
	}
	def.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse created_at for definition %q", def.Kind)
	}
	def.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse updated_at for definition %q", def.Kind)
	}

	return &def, nil
}
