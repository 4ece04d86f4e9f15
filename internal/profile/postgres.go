package profile

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// DatabaseConfig holds the Postgres connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

const profileSchema = `
CREATE TABLE IF NOT EXISTS user_profiles (
    user_key   TEXT PRIMARY KEY,
    updated_at TIMESTAMPTZ NOT NULL,
    analysis   TEXT NOT NULL,
    username   TEXT NOT NULL
)`

// PostgresStore keeps profile documents in a single upsert table.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(config DatabaseConfig, logger *zap.Logger) (*PostgresStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}
	if _, err := db.Exec(profileSchema); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Get(ctx context.Context, userKey string) (*Document, error) {
	query := `
		SELECT updated_at, analysis, username
		FROM user_profiles
		WHERE user_key = $1`

	doc := &Document{}
	err := s.db.QueryRowContext(ctx, query, userKey).Scan(&doc.Timestamp, &doc.Analysis, &doc.Username)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying profile: %v", err)
	}
	return doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, userKey string, doc *Document) error {
	query := `
		INSERT INTO user_profiles (user_key, updated_at, analysis, username)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_key) DO UPDATE
		SET updated_at = EXCLUDED.updated_at,
		    analysis = EXCLUDED.analysis,
		    username = EXCLUDED.username`

	if _, err := s.db.ExecContext(ctx, query, userKey, doc.Timestamp, doc.Analysis, doc.Username); err != nil {
		return fmt.Errorf("error upserting profile: %v", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
