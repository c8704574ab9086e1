package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/veloma/internal/gesture"
)

// ErrDuplicateName is returned when a preset name is already taken.
var ErrDuplicateName = errors.New("preset name already exists")

// Preset is a saved scale and mode combination. Scale names a catalog entry
// and StartNote is a MIDI key.
type Preset struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	StartNote  int                    `json:"start_note"`
	Octaves    int                    `json:"octaves"`
	Scale      string                 `json:"scale"`
	Instrument string                 `json:"instrument"`
	Mode       gesture.Mode           `json:"mode"`
	Hands      gesture.HandAssignment `json:"hands"`
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

const presetColumns = `id, name, start_note, octaves, scale, instrument, mode, hands, created_at, updated_at`

// Create inserts a new preset into the database.
func (r *PresetRepository) Create(p *Preset) error {
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO presets (`+presetColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.StartNote, p.Octaves, p.Scale, p.Instrument,
		p.Mode.String(), p.Hands.String(), p.CreatedAt, p.UpdatedAt,
	)
	return uniqueViolation(err)
}

// GetByID retrieves a preset by its ID.
func (r *PresetRepository) GetByID(id string) (*Preset, error) {
	row := r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE id = ?`, id)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// GetByName retrieves a preset by its name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	row := r.db.QueryRow(`SELECT `+presetColumns+` FROM presets WHERE name = ?`, name)
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List retrieves all presets, most recently updated first.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(`SELECT ` + presetColumns + ` FROM presets ORDER BY updated_at DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var presets []*Preset
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return presets, nil
}

// Update updates an existing preset in the database.
func (r *PresetRepository) Update(p *Preset) error {
	p.UpdatedAt = time.Now()

	result, err := r.db.Exec(
		`UPDATE presets SET name = ?, start_note = ?, octaves = ?, scale = ?, instrument = ?,
		 mode = ?, hands = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.StartNote, p.Octaves, p.Scale, p.Instrument,
		p.Mode.String(), p.Hands.String(), p.UpdatedAt, p.ID,
	)
	if err != nil {
		return uniqueViolation(err)
	}
	return affected(result)
}

// Delete removes a preset from the database by its ID.
func (r *PresetRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(result)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPreset(row scanner) (*Preset, error) {
	p := &Preset{}
	var mode, hands string

	err := row.Scan(&p.ID, &p.Name, &p.StartNote, &p.Octaves, &p.Scale, &p.Instrument,
		&mode, &hands, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := p.Mode.UnmarshalText([]byte(mode)); err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.ID, err)
	}
	if err := p.Hands.UnmarshalText([]byte(hands)); err != nil {
		return nil, fmt.Errorf("preset %s: %w", p.ID, err)
	}
	return p, nil
}

func uniqueViolation(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", ErrDuplicateName, err)
	}
	return err
}
