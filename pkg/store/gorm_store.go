package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"contentbrain/pkg/domain"
)

const migrateLockID int64 = 61537201

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(?)", migrateLockID).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		if err := tx.AutoMigrate(&GenerationModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// SaveGeneration inserts a new generation record.
func (s *GormStore) SaveGeneration(record domain.GenerationRecord) error {
	model := modelFromRecord(record)
	if err := s.db.Create(&model).Error; err != nil {
		return fmt.Errorf("save generation: %w", err)
	}
	return nil
}

// GetGeneration fetches a record by ID.
func (s *GormStore) GetGeneration(id string) (domain.GenerationRecord, bool, error) {
	var model GenerationModel
	err := s.db.First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.GenerationRecord{}, false, nil
	}
	if err != nil {
		return domain.GenerationRecord{}, false, fmt.Errorf("get generation: %w", err)
	}
	return recordFromModel(model), true, nil
}

// ListGenerationsByOwner returns the owner's records newest-first, capped at limit.
func (s *GormStore) ListGenerationsByOwner(ownerID string, limit int) ([]domain.GenerationRecord, error) {
	if limit <= 0 {
		return []domain.GenerationRecord{}, nil
	}
	var models []GenerationModel
	if err := s.db.
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	records := make([]domain.GenerationRecord, 0, len(models))
	for _, model := range models {
		records = append(records, recordFromModel(model))
	}
	return records, nil
}

// DeleteGeneration removes a record by ID.
func (s *GormStore) DeleteGeneration(id string) error {
	if err := s.db.Delete(&GenerationModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete generation: %w", err)
	}
	return nil
}

func modelFromRecord(record domain.GenerationRecord) GenerationModel {
	model := GenerationModel{
		ID:          record.ID,
		OwnerID:     record.OwnerID,
		Topic:       record.Topic,
		ContentType: record.ContentType,
		Tone:        record.Tone,
		Language:    record.Language,
		Answer:      record.Answer,
		CreatedAt:   record.CreatedAt,
	}
	if record.Analytics != nil {
		if raw, err := json.Marshal(record.Analytics); err == nil {
			model.Analytics = raw
		}
	}
	return model
}

func recordFromModel(model GenerationModel) domain.GenerationRecord {
	record := domain.GenerationRecord{
		ID:          model.ID,
		OwnerID:     model.OwnerID,
		Topic:       model.Topic,
		ContentType: model.ContentType,
		Tone:        model.Tone,
		Language:    model.Language,
		Answer:      model.Answer,
		CreatedAt:   model.CreatedAt,
	}
	if len(model.Analytics) > 0 {
		var snapshot domain.AnalyticsSnapshot
		if err := json.Unmarshal(model.Analytics, &snapshot); err == nil {
			record.Analytics = &snapshot
		}
	}
	return record
}
