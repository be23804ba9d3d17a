package database

import (
	"time"

	"github.com/djeeyo/nmreggae/internal/metrics"
	"gorm.io/gorm"
)

const startTimeKey = "metrics:start_time"

// RegisterMetricsHooks records every create, query, update and delete
func RegisterMetricsHooks(db *gorm.DB, m *metrics.Metrics) error {
	record := func(queryType string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			m.RecordDatabaseQuery(queryType, tx.Error == nil, getDuration(tx))
		}
	}

	callbacks := db.Callback()
	if err := callbacks.Create().After("gorm:create").Register("metrics:create", record(metrics.DBQueryTypeInsert)); err != nil {
		return err
	}
	if err := callbacks.Query().After("gorm:query").Register("metrics:query", record(metrics.DBQueryTypeSelect)); err != nil {
		return err
	}
	if err := callbacks.Update().After("gorm:update").Register("metrics:update", record(metrics.DBQueryTypeUpdate)); err != nil {
		return err
	}
	return callbacks.Delete().After("gorm:delete").Register("metrics:delete", record(metrics.DBQueryTypeDelete))
}

// RegisterDurationHooks stamps the start time before each operation
func RegisterDurationHooks(db *gorm.DB) error {
	callbacks := db.Callback()
	if err := callbacks.Create().Before("gorm:create").Register("duration:create", logStart); err != nil {
		return err
	}
	if err := callbacks.Query().Before("gorm:query").Register("duration:query", logStart); err != nil {
		return err
	}
	if err := callbacks.Update().Before("gorm:update").Register("duration:update", logStart); err != nil {
		return err
	}
	return callbacks.Delete().Before("gorm:delete").Register("duration:delete", logStart)
}

func logStart(tx *gorm.DB) {
	tx.InstanceSet(startTimeKey, time.Now())
}

func getDuration(tx *gorm.DB) time.Duration {
	if start, ok := tx.InstanceGet(startTimeKey); ok {
		return time.Since(start.(time.Time))
	}
	return 0
}
