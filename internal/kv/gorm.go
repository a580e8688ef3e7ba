package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/suPer8Hu/ai-debate/internal/db"
)

type entry struct {
	Key       string    `gorm:"column:entry_key;type:varchar(191);primaryKey"`
	Value     []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (entry) TableName() string { return "kv_entries" }

// GormStore keeps entries in a single table. On SQLite it plays the part of
// browser local storage: one file per device profile.
type GormStore struct {
	db *gorm.DB
}

// OpenGorm opens a sqlite file path or a mysql DSN and migrates the table.
func OpenGorm(driver, dsn string) (*GormStore, error) {
	gdb, err := db.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}
	return NewGormStore(gdb)
}

// NewGormStore wraps an existing connection.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&entry{}); err != nil {
		return nil, fmt.Errorf("migrate kv_entries: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, key string) ([]byte, error) {
	var e entry
	if err := s.db.WithContext(ctx).First(&e, "entry_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e.Value, nil
}

// Set upserts; concurrent writers resolve last-writer-wins.
func (s *GormStore) Set(ctx context.Context, key string, value []byte) error {
	e := entry{Key: key, Value: value, UpdatedAt: time.Now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
}

func (s *GormStore) Remove(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&entry{}).Error
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
