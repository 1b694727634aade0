package store

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/flickerlabs/flicker-relay/internal/ledger"
	"github.com/flickerlabs/flicker-relay/internal/models"
)

// GormStore persists ledger records as database rows via GORM. It keeps the
// whole-snapshot contract of ledger.Store: Save upserts every record and
// deletes rows absent from the map.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a GormStore.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Load reads all usage rows. Rows with corrupt counter JSON are skipped and
// logged rather than failing the whole load.
func (s *GormStore) Load(ctx context.Context) (map[string]ledger.Record, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("gorm store: not initialized")
	}

	var rows []models.UsageRecord
	if errFind := s.db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("gorm store: load: %w", errFind)
	}

	records := make(map[string]ledger.Record, len(rows))
	for _, row := range rows {
		counters := make(map[ledger.Category]int)
		if len(row.Counters) > 0 {
			if errUnmarshal := json.Unmarshal(row.Counters, &counters); errUnmarshal != nil {
				log.WithError(errUnmarshal).WithField("identity", row.Identity).
					Warn("gorm store: skipping row with corrupt counters")
				continue
			}
		}
		records[row.Identity] = ledger.Record{Counters: counters, LastReset: row.LastReset}
	}
	return records, nil
}

// Save replaces the stored snapshot inside one transaction.
func (s *GormStore) Save(ctx context.Context, records map[string]ledger.Record) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("gorm store: not initialized")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		identities := make([]string, 0, len(records))
		for id, record := range records {
			counters, errMarshal := json.Marshal(record.Counters)
			if errMarshal != nil {
				return fmt.Errorf("gorm store: marshal counters: %w", errMarshal)
			}
			row := models.UsageRecord{
				Identity:  id,
				Counters:  datatypes.JSON(counters),
				LastReset: record.LastReset,
			}
			if errUpsert := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "identity"}},
				DoUpdates: clause.AssignmentColumns([]string{"counters", "last_reset", "updated_at"}),
			}).Create(&row).Error; errUpsert != nil {
				return fmt.Errorf("gorm store: upsert %s: %w", id, errUpsert)
			}
			identities = append(identities, id)
		}

		del := tx.Model(&models.UsageRecord{})
		if len(identities) > 0 {
			del = del.Where("identity NOT IN ?", identities)
		}
		if errDelete := del.Where("1 = 1").Delete(&models.UsageRecord{}).Error; errDelete != nil {
			return fmt.Errorf("gorm store: prune: %w", errDelete)
		}
		return nil
	})
}

// Close closes the underlying sql connection.
func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, errDB := s.db.DB()
	if errDB != nil {
		return errDB
	}
	return sqlDB.Close()
}
