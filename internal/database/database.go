package database

import (
	"database/sql"
	"fmt"

	"github.com/KKNMAL003/dash/internal/migrations"
	"github.com/KKNMAL003/dash/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the local persistence layer: per-user notification lists and
// per-instance settings. It is the server-side analog of the browser's
// localStorage and is never synced to the backend.
type Store struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Store, error) {
	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid local store path: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping local store: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	encryptor, err := NewEncryptor()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Store{db: db, encryptor: encryptor}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
