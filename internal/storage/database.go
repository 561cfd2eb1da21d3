// Package storage provides database connection and management
package storage

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/model-router/router/internal/dispatcher"
	"github.com/model-router/router/pkg/types"
	"github.com/model-router/router/pkg/utils"
)

// Database represents the database connection manager
type Database struct {
	DB     *gorm.DB
	config *types.DatabaseConfig
	logger *utils.Logger
}

// NewDatabase creates a new database connection
func NewDatabase(config *types.DatabaseConfig, log *utils.Logger) (*Database, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		config.Host,
		config.Port,
		config.Username,
		config.Password,
		config.Database,
	)

	gormLogger := logger.New(
		log,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Silent,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(config.MaxOpenConns)
	sqlDB.SetMaxIdleConns(config.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	database := &Database{
		DB:     db,
		config: config,
		logger: log,
	}

	if err := database.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("Successfully connected to PostgreSQL database")

	return database, nil
}

// Ping tests the database connection
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate runs database migrations
func (d *Database) AutoMigrate() error {
	d.logger.Info("Starting database migration")

	models := []interface{}{
		&Character{},
		&APIKey{},
		&RequestLog{},
	}

	for _, model := range models {
		if err := d.DB.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	d.logger.Info("Database migration completed successfully")
	return nil
}

// CharacterRepository provides character data access methods
type CharacterRepository struct {
	db *gorm.DB
}

func (d *Database) CharacterRepo() *CharacterRepository {
	return &CharacterRepository{db: d.DB}
}

func (r *CharacterRepository) Create(ctx context.Context, character *Character) error {
	return r.db.WithContext(ctx).Create(character).Error
}

func (r *CharacterRepository) GetByName(ctx context.Context, name string) (*Character, error) {
	var character Character
	err := r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&character).Error
	if err != nil {
		return nil, err
	}
	return &character, nil
}

func (r *CharacterRepository) List(ctx context.Context, offset, limit int) ([]Character, error) {
	var characters []Character
	err := r.db.WithContext(ctx).Where("is_active = ?", true).
		Offset(offset).Limit(limit).Order("name").Find(&characters).Error
	return characters, err
}

func (r *CharacterRepository) Update(ctx context.Context, character *Character) error {
	return r.db.WithContext(ctx).Save(character).Error
}

func (r *CharacterRepository) Delete(ctx context.Context, name string) error {
	return r.db.WithContext(ctx).Model(&Character{}).
		Where("name = ?", name).Update("is_active", false).Error
}

// APIKeyRepository provides API key data access methods
type APIKeyRepository struct {
	db *gorm.DB
}

func (d *Database) APIKeyRepo() *APIKeyRepository {
	return &APIKeyRepository{db: d.DB}
}

func (r *APIKeyRepository) Create(ctx context.Context, key *APIKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *APIKeyRepository) GetByDigest(ctx context.Context, digest string) (*APIKey, error) {
	var key APIKey
	err := r.db.WithContext(ctx).Where("digest = ? AND is_active = ?", digest, true).First(&key).Error
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func (r *APIKeyRepository) UpdateLastUsed(ctx context.Context, keyID uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", keyID).Update("last_used_at", &now).Error
}

func (r *APIKeyRepository) Revoke(ctx context.Context, keyID uint) error {
	return r.db.WithContext(ctx).Model(&APIKey{}).Where("id = ?", keyID).Update("is_active", false).Error
}

// RequestLogRepository provides request log data access methods. It
// implements the dispatcher's Recorder contract.
type RequestLogRepository struct {
	db     *gorm.DB
	logger *utils.Logger
}

func (d *Database) RequestLogRepo() *RequestLogRepository {
	return &RequestLogRepository{db: d.DB, logger: d.logger}
}

// Record persists one dispatch outcome. Failures are logged and
// swallowed; the request log never fails a response.
func (r *RequestLogRepository) Record(ctx context.Context, entry *dispatcher.DispatchRecord) {
	row := &RequestLog{
		RequestID: entry.RequestID,
		CallerID:  entry.CallerID,
		TaskType:  entry.TaskType,
		Provider:  entry.Provider,
		Attempts:  entry.Attempts,
		Success:   entry.Success,
		Error:     entry.Error,
		LatencyMs: entry.LatencyMs,
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		r.logger.WithError(err).Warn("Failed to record request log entry")
	}
}

// Stats aggregates request log rows over a time range.
func (r *RequestLogRepository) Stats(ctx context.Context, startTime, endTime time.Time) (map[string]interface{}, error) {
	var stats struct {
		TotalRequests   int64   `json:"total_requests"`
		SuccessRequests int64   `json:"success_requests"`
		AvgLatencyMs    float64 `json:"avg_latency_ms"`
	}

	err := r.db.WithContext(ctx).Model(&RequestLog{}).
		Where("created_at BETWEEN ? AND ?", startTime, endTime).
		Select("COUNT(*) as total_requests, COUNT(CASE WHEN success THEN 1 END) as success_requests, COALESCE(AVG(latency_ms), 0) as avg_latency_ms").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"total_requests":   stats.TotalRequests,
		"success_requests": stats.SuccessRequests,
		"avg_latency_ms":   stats.AvgLatencyMs,
	}, nil
}
