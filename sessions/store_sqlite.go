package sessions

import (
	"context"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// sessionRow is the gorm model for a session record. Credential bundles are
// embedded with per-provider column prefixes.
type sessionRow struct {
	ID             string `gorm:"primaryKey"`
	SecretHash     []byte
	CreatedAt      time.Time
	LastVerifiedAt time.Time `gorm:"index"`

	GitHub      Credentials `gorm:"embedded;embeddedPrefix:github_"`
	Notion      Credentials `gorm:"embedded;embeddedPrefix:notion_"`
	GoogleDrive Credentials `gorm:"embedded;embeddedPrefix:google_drive_"`
	Gmail       Credentials `gorm:"embedded;embeddedPrefix:gmail_"`
}

func (sessionRow) TableName() string {
	return "sessions"
}

// SQLiteStore is a Store backed by a SQLite database file, for
// single-instance deployments that must survive restarts.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// migrates the sessions table.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "[NewSQLiteStore] open database")
	}
	if err := db.AutoMigrate(&sessionRow{}); err != nil {
		return nil, errors.Wrap(err, "[NewSQLiteStore] migrate sessions table")
	}
	return &SQLiteStore{db: db}, nil
}

// Get implements Store.Get.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Session, error) {
	var row sessionRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[SQLiteStore Get] read session")
	}
	return rowToSession(&row), nil
}

// Upsert implements Store.Upsert.
func (s *SQLiteStore) Upsert(ctx context.Context, session *Session) error {
	if err := s.db.WithContext(ctx).Save(sessionToRow(session)).Error; err != nil {
		return errors.Wrap(err, "[SQLiteStore Upsert] write session")
	}
	return nil
}

// Delete implements Store.Delete.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&sessionRow{}, "id = ?", id).Error; err != nil {
		return errors.Wrap(err, "[SQLiteStore Delete] delete session")
	}
	return nil
}

// DeleteExpired implements Store.DeleteExpired.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, cutoff time.Time) error {
	err := s.db.WithContext(ctx).
		Where("last_verified_at < ?", cutoff).
		Delete(&sessionRow{}).Error
	if err != nil {
		return errors.Wrap(err, "[SQLiteStore DeleteExpired] delete sessions")
	}
	return nil
}

func sessionToRow(session *Session) *sessionRow {
	return &sessionRow{
		ID:             session.ID,
		SecretHash:     session.SecretHash,
		CreatedAt:      session.CreatedAt,
		LastVerifiedAt: session.LastVerifiedAt,
		GitHub:         session.GitHub,
		Notion:         session.Notion,
		GoogleDrive:    session.GoogleDrive,
		Gmail:          session.Gmail,
	}
}

func rowToSession(row *sessionRow) *Session {
	return &Session{
		ID:             row.ID,
		SecretHash:     row.SecretHash,
		CreatedAt:      row.CreatedAt,
		LastVerifiedAt: row.LastVerifiedAt,
		GitHub:         row.GitHub,
		Notion:         row.Notion,
		GoogleDrive:    row.GoogleDrive,
		Gmail:          row.Gmail,
	}
}
