// interfaces.go: this code defines the interface for the warehouse store
package datastore

import (
	"fmt"
	"time"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/observability/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Interface abstracts the underlying database implementation and defines the
// operations the pipeline performs against the warehouse store.
type Interface interface {
	Open() error
	Close() error
	Conn() *gorm.DB
	SetMetrics(m *metrics.WarehouseMetrics)

	// raw inputs
	InsertRawMessages(msgs []RawMessage) (int64, error)
	GetRawMessages() ([]RawMessage, error)
	UpsertImageDetections(detections []ImageDetection) (int64, error)
	GetImageDetections() ([]ImageDetection, error)

	// surrogate key registry
	GetChannelRegistry() ([]ChannelKeyEntry, error)
	AppendChannelRegistry(entries []ChannelKeyEntry) error

	// full-replace materializations
	ReplaceStaging(runID string, rows []StagedMessage) error
	ReplaceCalendarDim(runID string, rows []CalendarDay) error
	ReplaceChannelDim(runID string, rows []Channel) error
	ReplaceMessageFacts(runID string, rows []MessageFact) error
	ReplaceEnrichmentFacts(runID string, rows []EnrichmentFact) error

	// readers
	GetStagedMessages() ([]StagedMessage, error)
	GetCalendarDim() ([]CalendarDay, error)
	GetChannelDim() ([]Channel, error)
	GetMessageFacts() ([]MessageFact, error)
	GetEnrichmentFacts() ([]EnrichmentFact, error)
	GetMaterialization(table string) (*Materialization, error)

	// analytics
	ChannelActivity(channelName string) (*ChannelActivityData, error)
	VisualContentStats() (*VisualContentStatsData, error)
	ProductTypeSummary() ([]ProductTypeSummaryData, error)
	SearchMessages(query string, limit int) ([]MessageFact, error)
}

// DataStore implements Interface using a GORM database.
type DataStore struct {
	DB      *gorm.DB // GORM database instance
	Metrics *metrics.WarehouseMetrics
}

// SetMetrics attaches warehouse metrics. Optional; a nil receiver field
// disables recording.
func (ds *DataStore) SetMetrics(m *metrics.WarehouseMetrics) {
	ds.Metrics = m
}

// New creates a new store instance based on the provided configuration.
func New(settings *conf.Settings) Interface {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{
			Settings: settings,
		}
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{
			Settings: settings,
		}
	default:
		return nil
	}
}

// Conn exposes the underlying GORM handle for components that run their own
// queries against the warehouse, like the data-quality battery.
func (ds *DataStore) Conn() *gorm.DB {
	return ds.DB
}

// InsertRawMessages appends raw messages to the raw store. Rows whose
// (message_id, loaded_at) pair is already present are ignored so repeated lake
// loads stay idempotent. Returns the number of rows actually inserted.
func (ds *DataStore) InsertRawMessages(msgs []RawMessage) (int64, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	var inserted int64
	err := ds.DB.Transaction(func(tx *gorm.DB) error {
		for i := range msgs {
			var count int64
			if err := tx.Model(&RawMessage{}).
				Where("message_id = ? AND loaded_at = ?", msgs[i].MessageID, msgs[i].LoadedAt).
				Count(&count).Error; err != nil {
				return fmt.Errorf("checking existing raw message %d: %w", msgs[i].MessageID, err)
			}
			if count > 0 {
				continue
			}
			if err := tx.Create(&msgs[i]).Error; err != nil {
				return fmt.Errorf("saving raw message %d: %w", msgs[i].MessageID, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return inserted, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Table("raw_messages").
			Build()
	}
	return inserted, nil
}

// GetRawMessages retrieves all raw messages in deterministic
// (message_id, loaded_at) order so downstream dedup is reproducible.
func (ds *DataStore) GetRawMessages() ([]RawMessage, error) {
	var msgs []RawMessage
	if err := ds.DB.Order("message_id ASC, loaded_at ASC, id ASC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("getting raw messages: %w", err)
	}
	return msgs, nil
}

// UpsertImageDetections inserts or refreshes detection rows keyed by
// message id. Returns the number of rows written.
func (ds *DataStore) UpsertImageDetections(detections []ImageDetection) (int64, error) {
	if len(detections) == 0 {
		return 0, nil
	}
	err := ds.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		UpdateAll: true,
	}).Create(&detections).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Table("image_detections").
			Build()
	}
	return int64(len(detections)), nil
}

// GetImageDetections retrieves all detection rows keyed by message id.
func (ds *DataStore) GetImageDetections() ([]ImageDetection, error) {
	var detections []ImageDetection
	if err := ds.DB.Order("message_id ASC").Find(&detections).Error; err != nil {
		return nil, fmt.Errorf("getting image detections: %w", err)
	}
	return detections, nil
}

// GetChannelRegistry retrieves the append-only surrogate key registry in key
// order.
func (ds *DataStore) GetChannelRegistry() ([]ChannelKeyEntry, error) {
	var entries []ChannelKeyEntry
	if err := ds.DB.Order("channel_key ASC").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("getting channel registry: %w", err)
	}
	return entries, nil
}

// AppendChannelRegistry stores newly assigned surrogate keys. Existing
// entries are never updated or removed.
func (ds *DataStore) AppendChannelRegistry(entries []ChannelKeyEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := ds.DB.Create(&entries).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Table("channel_registry").
			Build()
	}
	return nil
}

// GetStagedMessages retrieves the staging table in message id order.
func (ds *DataStore) GetStagedMessages() ([]StagedMessage, error) {
	var staged []StagedMessage
	if err := ds.DB.Order("message_id ASC").Find(&staged).Error; err != nil {
		return nil, fmt.Errorf("getting staged messages: %w", err)
	}
	return staged, nil
}

// GetCalendarDim retrieves the calendar dimension in date key order.
func (ds *DataStore) GetCalendarDim() ([]CalendarDay, error) {
	var days []CalendarDay
	if err := ds.DB.Order("date_key ASC").Find(&days).Error; err != nil {
		return nil, fmt.Errorf("getting calendar dimension: %w", err)
	}
	return days, nil
}

// GetChannelDim retrieves the channel dimension in channel key order.
func (ds *DataStore) GetChannelDim() ([]Channel, error) {
	var channels []Channel
	if err := ds.DB.Order("channel_key ASC").Find(&channels).Error; err != nil {
		return nil, fmt.Errorf("getting channel dimension: %w", err)
	}
	return channels, nil
}

// GetMessageFacts retrieves the message fact table in message id order.
func (ds *DataStore) GetMessageFacts() ([]MessageFact, error) {
	var facts []MessageFact
	if err := ds.DB.Order("message_id ASC").Find(&facts).Error; err != nil {
		return nil, fmt.Errorf("getting message facts: %w", err)
	}
	return facts, nil
}

// GetEnrichmentFacts retrieves the enrichment fact table in message id order.
func (ds *DataStore) GetEnrichmentFacts() ([]EnrichmentFact, error) {
	var facts []EnrichmentFact
	if err := ds.DB.Order("message_id ASC").Find(&facts).Error; err != nil {
		return nil, fmt.Errorf("getting enrichment facts: %w", err)
	}
	return facts, nil
}

// GetMaterialization returns the latest materialization record for the given
// table, or nil when the table has never been materialized.
func (ds *DataStore) GetMaterialization(table string) (*Materialization, error) {
	var mat Materialization
	err := ds.DB.Where("table_name = ?", table).
		Order("generation DESC").
		First(&mat).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getting materialization for %s: %w", table, err)
	}
	return &mat, nil
}

// now is split out for deterministic materialization timestamps in tests.
var now = time.Now
