// model.go this code defines the data model for the warehouse
package datastore

import "time"

// RawMessage is one ingested channel post as delivered by the acquisition
// collaborator. Rows are append-only and never mutated by the pipeline;
// duplicate message ids may occur across scrape runs and are resolved in
// staging.
type RawMessage struct {
	ID           uint   `gorm:"primaryKey"`
	MessageID    int64  `gorm:"index:idx_raw_message_id;not null"`
	ChannelName  string `gorm:"index:idx_raw_channel"`
	ChannelTitle string
	MessageDate  *time.Time
	MessageText  string `gorm:"type:text"`
	HasMedia     bool
	ImagePath    string
	ViewCount    int64
	ForwardCount int64
	LoadedAt     time.Time `gorm:"index:idx_raw_loaded_at"`
}

// TableName overrides the table name for RawMessage
func (RawMessage) TableName() string {
	return "raw_messages"
}

// StagedMessage is the validated, normalized projection of RawMessage.
// One row per message id, rebuilt wholesale on every pipeline run.
type StagedMessage struct {
	MessageID        int64  `gorm:"primaryKey;autoIncrement:false"`
	ChannelName      string `gorm:"index:idx_staging_channel;not null"`
	ChannelTitle     string
	MessageDate      *time.Time `gorm:"index:idx_staging_date"`
	MessageText      string     `gorm:"type:text"`
	TextLength       int
	HasText          bool
	HasMedia         bool
	ImagePath        string
	HasImageResolved bool
	ViewCount        int64
	ForwardCount     int64
	LoadedAt         time.Time
}

// TableName overrides the table name for StagedMessage
func (StagedMessage) TableName() string {
	return "staging"
}

// CalendarDay is one row of the calendar dimension. The surrogate key is the
// date formatted as an 8-digit YYYYMMDD integer.
type CalendarDay struct {
	DateKey    int       `gorm:"primaryKey;autoIncrement:false"`
	Date       time.Time `gorm:"index:idx_dim_calendar_date"`
	Year       int
	Quarter    string `gorm:"type:varchar(2)"`
	Month      int
	MonthName  string `gorm:"type:varchar(10)"`
	ISOWeek    int
	DayOfMonth int
	DayOfWeek  int
	DayName    string `gorm:"type:varchar(10)"`
	IsWeekend  bool
}

// TableName overrides the table name for CalendarDay
func (CalendarDay) TableName() string {
	return "dim_calendar"
}

// Channel is one row of the channel dimension, aggregated from staging.
// Surrogate keys come from the append-only channel registry so they stay
// stable across rebuilds even when the channel set changes.
type Channel struct {
	ChannelKey     int    `gorm:"primaryKey;autoIncrement:false"`
	ChannelName    string `gorm:"uniqueIndex:idx_dim_channel_name;not null"`
	ChannelTitle   string
	ChannelType    string `gorm:"index:idx_dim_channel_type"`
	TotalPosts     int64
	PostsWithImage int64
	AvgViews       float64
	AvgForwards    float64
	FirstPostDate  *time.Time
	LastPostDate   *time.Time
	ActiveDaySpan  int
}

// TableName overrides the table name for Channel
func (Channel) TableName() string {
	return "dim_channel"
}

// MessageFact is the primary fact table, one row per staged message that
// resolves against both dimensions.
type MessageFact struct {
	MessageID     int64  `gorm:"primaryKey;autoIncrement:false"`
	ChannelKey    int    `gorm:"index:idx_fact_messages_channel;not null"`
	DateKey       int    `gorm:"index:idx_fact_messages_date;not null"`
	MessageText   string `gorm:"type:text"`
	TextLength    int
	ViewCount     int64
	ForwardCount  int64
	MentionsPrice bool
	ProductType   string `gorm:"index:idx_fact_messages_product;type:varchar(20)"`
}

// TableName overrides the table name for MessageFact
func (MessageFact) TableName() string {
	return "fact_messages"
}

// EnrichmentFact joins vision detection output onto the message fact. Only
// facts with a resolved image and a matching detection row are present;
// engagement measures are denormalized for read convenience.
type EnrichmentFact struct {
	MessageID       int64 `gorm:"primaryKey;autoIncrement:false"`
	ChannelKey      int   `gorm:"index:idx_fact_enrichment_channel;not null"`
	DateKey         int   `gorm:"not null"`
	ImagePath       string
	DetectedObjects string `gorm:"type:text"` // comma separated class names
	DetectionCount  int
	ImageCategory   string `gorm:"index:idx_fact_enrichment_category;type:varchar(20)"`
	ConfidenceScore float64
	HasPerson       bool
	HasProduct      bool
	ViewCount       int64
	ForwardCount    int64
}

// TableName overrides the table name for EnrichmentFact
func (EnrichmentFact) TableName() string {
	return "fact_enrichment"
}

// ImageDetection is the per-image output of the external vision collaborator,
// keyed by message id. The collaborator may re-run and improve earlier rows,
// so loads are upserts.
type ImageDetection struct {
	MessageID       int64 `gorm:"primaryKey;autoIncrement:false"`
	ChannelName     string
	ImagePath       string
	DetectedObjects string `gorm:"type:text"`
	DetectionCount  int
	ImageCategory   string `gorm:"type:varchar(20)"`
	ConfidenceScore float64
	HasPerson       bool
	HasProduct      bool
	DetectedAt      time.Time
}

// TableName overrides the table name for ImageDetection
func (ImageDetection) TableName() string {
	return "image_detections"
}

// ChannelKeyEntry is one row of the append-only surrogate key registry for
// channels. Existing channels keep their key forever; new channels receive
// the next unused key.
type ChannelKeyEntry struct {
	ChannelKey  int       `gorm:"primaryKey;autoIncrement:false"`
	ChannelName string    `gorm:"uniqueIndex:idx_channel_registry_name;not null"`
	AssignedAt  time.Time `gorm:"not null"`
}

// TableName overrides the table name for ChannelKeyEntry
func (ChannelKeyEntry) TableName() string {
	return "channel_registry"
}

// Materialization records one completed full-replace of an output table.
// The row is written in the same transaction as the replace, so the highest
// generation always describes the visible table contents.
type Materialization struct {
	ID             uint   `gorm:"primaryKey"`
	Table          string `gorm:"column:table_name;index:idx_materializations_table;not null"`
	RunID          string `gorm:"type:varchar(36)"`
	Generation     int    `gorm:"not null"`
	RowCount       int64
	MaterializedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name for Materialization
func (Materialization) TableName() string {
	return "materializations"
}
