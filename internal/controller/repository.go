package controller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for controller persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// GetByID retrieves a controller by its unique identifier.
	// Returns ErrNotFound if the controller does not exist.
	GetByID(ctx context.Context, id string) (*Config, error)

	// List retrieves all controllers ordered by name.
	List(ctx context.Context) ([]Config, error)

	// ListEnabled retrieves the controllers the bridge should supervise.
	ListEnabled(ctx context.Context) ([]Config, error)

	// Create inserts a new controller.
	// Returns ErrExists if a controller with the same ID already exists.
	Create(ctx context.Context, c *Config) error

	// Update modifies an existing controller.
	// Returns ErrNotFound if the controller does not exist.
	Update(ctx context.Context, c *Config) error

	// Delete removes a controller by ID.
	// Returns ErrNotFound if the controller does not exist.
	Delete(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// controllers table migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const controllerColumns = "id, name, address, model, enabled, created_at, updated_at"

// GetByID retrieves a controller by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Config, error) {
	query := "SELECT " + controllerColumns + " FROM controllers WHERE id = ?"

	c, err := scanController(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying controller by id: %w", err)
	}
	return c, nil
}

// List retrieves all controllers ordered by name.
func (r *SQLiteRepository) List(ctx context.Context) ([]Config, error) {
	query := "SELECT " + controllerColumns + " FROM controllers ORDER BY name"
	return r.queryControllers(ctx, query)
}

// ListEnabled retrieves the controllers the bridge should supervise.
func (r *SQLiteRepository) ListEnabled(ctx context.Context) ([]Config, error) {
	query := "SELECT " + controllerColumns + " FROM controllers WHERE enabled = 1 ORDER BY name"
	return r.queryControllers(ctx, query)
}

// Create inserts a new controller.
func (r *SQLiteRepository) Create(ctx context.Context, c *Config) error {
	if err := Validate(c); err != nil {
		return err
	}

	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	query := `
		INSERT INTO controllers (id, name, address, model, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		c.ID, c.Name, c.Address, c.Model, boolToInt(c.Enabled),
		c.CreatedAt.Format(time.RFC3339), c.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting controller: %w", err)
	}
	return nil
}

// Update modifies an existing controller.
func (r *SQLiteRepository) Update(ctx context.Context, c *Config) error {
	if err := Validate(c); err != nil {
		return err
	}

	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE controllers
		SET name = ?, address = ?, model = ?, enabled = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.Address, c.Model, boolToInt(c.Enabled),
		c.UpdatedAt.Format(time.RFC3339), c.ID,
	)
	if err != nil {
		return fmt.Errorf("updating controller: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a controller by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM controllers WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting controller: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// queryControllers runs a multi-row query and scans all results.
func (r *SQLiteRepository) queryControllers(ctx context.Context, query string, args ...any) ([]Config, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying controllers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Read-only cursor

	var controllers []Config
	for rows.Next() {
		c, err := scanController(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning controller: %w", err)
		}
		controllers = append(controllers, *c)
	}
	return controllers, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows for scanController.
type scanner interface {
	Scan(dest ...any) error
}

// scanController reads one controller row.
func scanController(s scanner) (*Config, error) {
	var (
		c         Config
		enabled   int
		createdAt string
		updatedAt string
	)

	if err := s.Scan(&c.ID, &c.Name, &c.Address, &c.Model, &enabled, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	c.Enabled = enabled != 0

	var err error
	if c.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a SQLite primary key conflict.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
