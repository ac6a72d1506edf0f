package repository

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"MarketMinute/internal/domain/models"
	"MarketMinute/internal/domain/repository"
)

// GormAccountStore reads account rows through GORM.
type GormAccountStore struct {
	db *gorm.DB
}

var _ repository.AccountStore = (*GormAccountStore)(nil)

// OpenAccountStore opens a SQLite database at dsn and migrates the accounts table.
func OpenAccountStore(dsn string) (*GormAccountStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open accounts db: %w", err)
	}
	return NewGormAccountStore(db)
}

// NewGormAccountStore wraps an open handle and migrates the accounts table.
func NewGormAccountStore(db *gorm.DB) (*GormAccountStore, error) {
	if err := db.AutoMigrate(&models.Account{}); err != nil {
		return nil, fmt.Errorf("migrate accounts: %w", err)
	}
	return &GormAccountStore{db: db}, nil
}

func (s *GormAccountStore) FindByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acc models.Account
	res := s.db.WithContext(ctx).Where("email = ?", email).Limit(1).Find(&acc)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &acc, nil
}

// Save inserts or updates acc by email.
func (s *GormAccountStore) Save(ctx context.Context, acc *models.Account) error {
	existing, err := s.FindByEmail(ctx, acc.Email)
	if err != nil {
		return err
	}
	if existing != nil {
		acc.ID = existing.ID
		acc.CreatedAt = existing.CreatedAt
	}
	return s.db.WithContext(ctx).Save(acc).Error
}

func (s *GormAccountStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
