// manage.go: schema migration for the warehouse tables
package datastore

import (
	"time"

	"github.com/tphakala/medtel-go/internal/errors"
	"gorm.io/gorm"
)

// performAutoMigration migrates every warehouse table, input and output
// alike. Output tables are still rebuilt with full replaces; migration only
// maintains the schema.
func performAutoMigration(db *gorm.DB, debug bool, dbType string) error {
	migrationStart := time.Now()
	log := getLogger().With("db_type", dbType)

	tableMappings := []struct {
		model any
		name  string
	}{
		{&RawMessage{}, "raw_messages"},
		{&ImageDetection{}, "image_detections"},
		{&StagedMessage{}, "staging"},
		{&CalendarDay{}, "dim_calendar"},
		{&Channel{}, "dim_channel"},
		{&MessageFact{}, "fact_messages"},
		{&EnrichmentFact{}, "fact_enrichment"},
		{&ChannelKeyEntry{}, "channel_registry"},
		{&Materialization{}, "materializations"},
	}

	for _, table := range tableMappings {
		tableStart := time.Now()
		if err := db.AutoMigrate(table.model); err != nil {
			enhancedErr := errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Table(table.name).
				Context("db_type", dbType).
				Context("operation", "auto_migrate").
				Build()
			log.Error("Table migration failed", "table", table.name, "error", enhancedErr)
			return enhancedErr
		}
		if debug {
			log.Debug("Table migrated", "table", table.name, "duration", time.Since(tableStart))
		}
	}

	if debug {
		log.Debug("Database migration completed",
			"tables_migrated", len(tableMappings),
			"total_duration", time.Since(migrationStart))
	}

	return nil
}
