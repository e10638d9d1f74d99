package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mail-triage-go/internal/config"
)

// Store is the durable log store: the duplicate-suppression index plus the
// terminal audit records.
type Store struct {
	db *gorm.DB
}

// Init opens the database connection and runs migrations
func Init(cfg config.DatabaseConfig) (*Store, error) {
	gormLogger := logger.New(
		logrus.StandardLogger(),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(mysql.Open(cfg.GetDSN()), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&ProcessingRecord{}, &SkipRecord{}); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}

	logrus.Info("Log store initialized")
	return &Store{db: db}, nil
}

// New wraps an existing gorm connection, used by handlers and tests.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Exists reports whether a processing record was already written for the
// thread. This is the duplicate guard's point lookup and must run before
// any classification or forwarding call.
func (s *Store) Exists(ctx context.Context, threadID string) (bool, error) {
	var record ProcessingRecord
	result := s.db.WithContext(ctx).Select("id").Where("thread_id = ?", threadID).First(&record)
	if result.Error == nil {
		return true, nil
	}
	if result.Error == gorm.ErrRecordNotFound {
		return false, nil
	}
	return false, fmt.Errorf("database error checking processed thread: %w", result.Error)
}

// InsertProcessingRecord writes the terminal record for a processed message
func (s *Store) InsertProcessingRecord(ctx context.Context, record *ProcessingRecord) error {
	if result := s.db.WithContext(ctx).Create(record); result.Error != nil {
		return fmt.Errorf("failed to insert processing record: %w", result.Error)
	}
	return nil
}

// InsertSkipRecord writes the terminal record for a skipped message
func (s *Store) InsertSkipRecord(ctx context.Context, record *SkipRecord) error {
	if result := s.db.WithContext(ctx).Create(record); result.Error != nil {
		return fmt.Errorf("failed to insert skip record: %w", result.Error)
	}
	return nil
}

// ListProcessingRecords returns recent processing records, newest first
func (s *Store) ListProcessingRecords(ctx context.Context, limit, offset int) ([]ProcessingRecord, error) {
	var records []ProcessingRecord
	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list processing records: %w", result.Error)
	}
	return records, nil
}

// ListSkipRecords returns recent skip records, newest first
func (s *Store) ListSkipRecords(ctx context.Context, limit, offset int) ([]SkipRecord, error) {
	var records []SkipRecord
	result := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list skip records: %w", result.Error)
	}
	return records, nil
}

// Ping checks database connectivity for the health endpoint
func (s *Store) Ping() error {
	return s.db.Raw("SELECT 1").Error
}
