package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type stateRecord struct {
	Namespace string `gorm:"primaryKey;size:128"`
	Data      []byte
	UpdatedAt time.Time
}

func (stateRecord) TableName() string { return "chat_state" }

// SQLStorage keeps namespaces as rows of a key/value table.
type SQLStorage struct {
	db *gorm.DB
}

// NewSQLStorage opens (or creates) the sqlite database at dsn.
func NewSQLStorage(dsn string) (*SQLStorage, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", dsn, err)
	}
	return NewSQLStorageWithDB(db)
}

// NewSQLStorageWithDB migrates the state table on an existing connection.
func NewSQLStorageWithDB(db *gorm.DB) (*SQLStorage, error) {
	if err := db.AutoMigrate(&stateRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate chat_state: %w", err)
	}
	return &SQLStorage{db: db}, nil
}

func (s *SQLStorage) Load(ctx context.Context, namespace string) ([]byte, error) {
	var record stateRecord
	err := s.db.WithContext(ctx).Where("namespace = ?", namespace).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", namespace, err)
	}
	return record.Data, nil
}

func (s *SQLStorage) Save(ctx context.Context, namespace string, data []byte) error {
	record := stateRecord{Namespace: namespace, Data: data, UpdatedAt: time.Now()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", namespace, err)
	}
	return nil
}

func (s *SQLStorage) Delete(ctx context.Context, namespace string) error {
	err := s.db.WithContext(ctx).Where("namespace = ?", namespace).Delete(&stateRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", namespace, err)
	}
	return nil
}

func (s *SQLStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
