// Package history persists the play history in SQLite.
package history

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Outcome is how a play ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Play is one track played (or attempted) by the scheduler.
type Play struct {
	ID        string    `gorm:"primaryKey;size:26"`
	Track     string    `gorm:"not null;index"`
	StartedAt time.Time `gorm:"not null;index"`
	EndedAt   time.Time
	Bytes     int64
	Outcome   Outcome `gorm:"size:16;not null"`
	Error     string
}

// BeforeCreate assigns a ULID to new rows.
func (p *Play) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = ulid.Make().String()
	}
	return nil
}

// Store is the play history database.
type Store struct {
	db *gorm.DB
}

// Open opens (and migrates) the SQLite database at dsn.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, errors.New("history dsn is empty")
	}
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "open history database")
	}
	if err := db.AutoMigrate(&Play{}); err != nil {
		return nil, errors.Wrap(err, "migrate history database")
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "get history sql.DB")
	}
	return sqlDB.Close()
}

// Add inserts a play.
func (s *Store) Add(ctx context.Context, play *Play) error {
	if err := s.db.WithContext(ctx).Create(play).Error; err != nil {
		return errors.Wrapf(err, "insert play: track=%s", play.Track)
	}
	return nil
}

// Recent returns up to limit plays, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Play, error) {
	if limit <= 0 {
		limit = 20
	}
	var plays []Play
	err := s.db.WithContext(ctx).
		Order("started_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&plays).Error
	if err != nil {
		return nil, errors.Wrap(err, "query recent plays")
	}
	return plays, nil
}
