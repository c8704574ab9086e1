package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Presets table - named scale and mapping mode combinations
		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			start_note INTEGER NOT NULL CHECK(start_note BETWEEN 0 AND 127),
			octaves INTEGER NOT NULL CHECK(octaves > 0),
			scale TEXT NOT NULL,
			instrument TEXT NOT NULL,
			mode TEXT NOT NULL CHECK(mode IN ('discrete', 'continuous')),
			hands TEXT NOT NULL CHECK(hands IN ('single', 'two')),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_presets_updated_at ON presets(updated_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
