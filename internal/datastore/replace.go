// replace.go: full-replace materialization of warehouse output tables
package datastore

import (
	"fmt"
	"time"

	"github.com/tphakala/medtel-go/internal/errors"
	"gorm.io/gorm"
)

// insertBatchSize bounds the multi-row inserts used during a replace.
const insertBatchSize = 500

// replaceTable rebuilds an output table inside a single transaction: the old
// generation is deleted, the new rows inserted and a materialization record
// written. Consumers never observe a partially replaced table; on any error
// the prior generation stays visible.
func replaceTable[T any](ds *DataStore, table, runID string, rows []T) error {
	start := time.Now()
	var generation int

	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}

		if len(rows) > 0 {
			if err := tx.CreateInBatches(rows, insertBatchSize).Error; err != nil {
				return fmt.Errorf("inserting into %s: %w", table, err)
			}
		}

		var lastGeneration int
		var last Materialization
		err := tx.Where("table_name = ?", table).
			Order("generation DESC").
			First(&last).Error
		switch {
		case err == nil:
			lastGeneration = last.Generation
		case errors.Is(err, gorm.ErrRecordNotFound):
			lastGeneration = 0
		default:
			return fmt.Errorf("reading materialization history for %s: %w", table, err)
		}

		generation = lastGeneration + 1
		mat := Materialization{
			Table:          table,
			RunID:          runID,
			Generation:     generation,
			RowCount:       int64(len(rows)),
			MaterializedAt: now(),
		}
		if err := tx.Create(&mat).Error; err != nil {
			return fmt.Errorf("recording materialization of %s: %w", table, err)
		}

		return nil
	})
	if ds.Metrics != nil {
		ds.Metrics.RecordReplacement(table, err == nil, time.Since(start).Seconds())
	}
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Table(table).
			Context("run_id", runID).
			Build()
	}
	if ds.Metrics != nil {
		ds.Metrics.RecordTableState(table, int64(len(rows)), int64(generation))
	}
	return nil
}

// ReplaceStaging atomically replaces the staging table.
func (ds *DataStore) ReplaceStaging(runID string, rows []StagedMessage) error {
	return replaceTable(ds, StagedMessage{}.TableName(), runID, rows)
}

// ReplaceCalendarDim atomically replaces the calendar dimension.
func (ds *DataStore) ReplaceCalendarDim(runID string, rows []CalendarDay) error {
	return replaceTable(ds, CalendarDay{}.TableName(), runID, rows)
}

// ReplaceChannelDim atomically replaces the channel dimension.
func (ds *DataStore) ReplaceChannelDim(runID string, rows []Channel) error {
	return replaceTable(ds, Channel{}.TableName(), runID, rows)
}

// ReplaceMessageFacts atomically replaces the message fact table.
func (ds *DataStore) ReplaceMessageFacts(runID string, rows []MessageFact) error {
	return replaceTable(ds, MessageFact{}.TableName(), runID, rows)
}

// ReplaceEnrichmentFacts atomically replaces the enrichment fact table.
func (ds *DataStore) ReplaceEnrichmentFacts(runID string, rows []EnrichmentFact) error {
	return replaceTable(ds, EnrichmentFact{}.TableName(), runID, rows)
}
