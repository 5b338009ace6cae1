// Package repository provides the PostgreSQL persistence of moods.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/moodmap/internal/models"
	"github.com/lib/pq"
)

const moodColumns = `id, owner_id, display_name, username, location_label, latitude, longitude,
		emoji, note, created_at, share_requested, is_random_location`

// PostgresMoodRepository stores one mood row per owner.
type PostgresMoodRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresMoodRepository creates a repository using the provided *sql.DB.
// db must be a valid connection to a PostgreSQL instance with the moods schema.
func NewPostgresMoodRepository(db *sql.DB) *PostgresMoodRepository {
	return &PostgresMoodRepository{DB: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMood(row scanner) (models.Mood, error) {
	var m models.Mood
	err := row.Scan(&m.ID, &m.OwnerID, &m.DisplayName, &m.Username, &m.LocationLabel,
		&m.Latitude, &m.Longitude, &m.Emoji, &m.Note, &m.CreatedAt, &m.ShareRequested, &m.IsRandomLocation)
	return m, err
}

// Upsert inserts the mood or, when the owner already has one, overwrites every
// column of that row except its id. The persisted row is returned.
func (r *PostgresMoodRepository) Upsert(ctx context.Context, m models.Mood) (*models.Mood, error) {
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO moods (`+moodColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (owner_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			username = EXCLUDED.username,
			location_label = EXCLUDED.location_label,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			emoji = EXCLUDED.emoji,
			note = EXCLUDED.note,
			created_at = EXCLUDED.created_at,
			share_requested = EXCLUDED.share_requested,
			is_random_location = EXCLUDED.is_random_location
		RETURNING `+moodColumns,
		m.ID, m.OwnerID, m.DisplayName, m.Username, m.LocationLabel, m.Latitude, m.Longitude,
		m.Emoji, m.Note, m.CreatedAt, m.ShareRequested, m.IsRandomLocation)

	saved, err := scanMood(row)
	if err != nil {
		return nil, fmt.Errorf("upsert mood: %w", err)
	}
	return &saved, nil
}

// GetByOwner returns the owner's mood, or nil when the owner has none.
func (r *PostgresMoodRepository) GetByOwner(ctx context.Context, owner int64) (*models.Mood, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+moodColumns+` FROM moods WHERE owner_id = $1`, owner)
	m, err := scanMood(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetByOwner: %w", err)
	}
	return &m, nil
}

// ListSince returns moods created at or after since, newest first.
func (r *PostgresMoodRepository) ListSince(ctx context.Context, since time.Time) ([]models.Mood, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+moodColumns+` FROM moods WHERE created_at >= $1 ORDER BY created_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("ListSince: %w", err)
	}
	return collect(rows)
}

// ListByOwners returns the moods of the given owners, newest first.
func (r *PostgresMoodRepository) ListByOwners(ctx context.Context, owners []int64) ([]models.Mood, error) {
	if len(owners) == 0 {
		return []models.Mood{}, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+moodColumns+` FROM moods WHERE owner_id = ANY($1) ORDER BY created_at DESC`, pq.Array(owners))
	if err != nil {
		return nil, fmt.Errorf("ListByOwners: %w", err)
	}
	return collect(rows)
}

func collect(rows *sql.Rows) ([]models.Mood, error) {
	defer rows.Close()

	moods := []models.Mood{}
	for rows.Next() {
		m, err := scanMood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		moods = append(moods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return moods, nil
}
