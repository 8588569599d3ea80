// internal/datastore/analytics.go
package datastore

import (
	"fmt"
	"strings"
	"time"
)

// ChannelActivityData contains posting statistics for a single channel
type ChannelActivityData struct {
	ChannelName    string
	ChannelType    string
	TotalPosts     int64
	PostsWithImage int64
	AvgViews       float64
	AvgForwards    float64
	FirstPostDate  time.Time
	LastPostDate   time.Time
	ActiveDaySpan  int
}

// VisualContentStatsData aggregates image detection results across all channels
type VisualContentStatsData struct {
	TotalImages       int64
	AvgDetections     float64
	AvgConfidence     float64
	ImagesWithPerson  int64
	ImagesWithProduct int64
	CategoryCounts    []CategoryCountData
}

// CategoryCountData represents message counts by image category
type CategoryCountData struct {
	Category string
	Count    int64
}

// ProductTypeSummaryData represents message counts and engagement by product type
type ProductTypeSummaryData struct {
	ProductType   string
	MessageCount  int64
	AvgViews      float64
	PriceMentions int64
}

// ChannelActivity retrieves posting statistics for a channel from the channel dimension
func (ds *DataStore) ChannelActivity(channelName string) (*ChannelActivityData, error) {
	var channel Channel
	if err := ds.DB.Where("channel_name = ?", channelName).First(&channel).Error; err != nil {
		return nil, fmt.Errorf("error getting activity for channel %s: %w", channelName, err)
	}

	data := &ChannelActivityData{
		ChannelName:    channel.ChannelName,
		ChannelType:    channel.ChannelType,
		TotalPosts:     channel.TotalPosts,
		PostsWithImage: channel.PostsWithImage,
		AvgViews:       channel.AvgViews,
		AvgForwards:    channel.AvgForwards,
		ActiveDaySpan:  channel.ActiveDaySpan,
	}
	if channel.FirstPostDate != nil {
		data.FirstPostDate = *channel.FirstPostDate
	}
	if channel.LastPostDate != nil {
		data.LastPostDate = *channel.LastPostDate
	}

	return data, nil
}

// VisualContentStats aggregates the enrichment fact table
func (ds *DataStore) VisualContentStats() (*VisualContentStatsData, error) {
	var stats VisualContentStatsData

	query := `
		SELECT
			COUNT(*) as total_images,
			COALESCE(AVG(detection_count), 0) as avg_detections,
			COALESCE(AVG(confidence_score), 0) as avg_confidence,
			COALESCE(SUM(CASE WHEN has_person THEN 1 ELSE 0 END), 0) as images_with_person,
			COALESCE(SUM(CASE WHEN has_product THEN 1 ELSE 0 END), 0) as images_with_product
		FROM fact_enrichment
	`
	row := ds.DB.Raw(query).Row()
	if err := row.Scan(
		&stats.TotalImages,
		&stats.AvgDetections,
		&stats.AvgConfidence,
		&stats.ImagesWithPerson,
		&stats.ImagesWithProduct,
	); err != nil {
		return nil, fmt.Errorf("error getting visual content stats: %w", err)
	}

	categoryQuery := `
		SELECT image_category, COUNT(*) as count
		FROM fact_enrichment
		GROUP BY image_category
		ORDER BY count DESC
	`
	rows, err := ds.DB.Raw(categoryQuery).Rows()
	if err != nil {
		return nil, fmt.Errorf("error getting image category counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cc CategoryCountData
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("error scanning image category counts: %w", err)
		}
		stats.CategoryCounts = append(stats.CategoryCounts, cc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading image category counts: %w", err)
	}

	return &stats, nil
}

// ProductTypeSummary groups the message fact table by product type
func (ds *DataStore) ProductTypeSummary() ([]ProductTypeSummaryData, error) {
	var summaries []ProductTypeSummaryData

	query := `
		SELECT
			product_type,
			COUNT(*) as message_count,
			COALESCE(AVG(view_count), 0) as avg_views,
			COALESCE(SUM(CASE WHEN mentions_price THEN 1 ELSE 0 END), 0) as price_mentions
		FROM fact_messages
		GROUP BY product_type
		ORDER BY message_count DESC
	`
	rows, err := ds.DB.Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("error getting product type summary: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var summary ProductTypeSummaryData
		if err := rows.Scan(
			&summary.ProductType,
			&summary.MessageCount,
			&summary.AvgViews,
			&summary.PriceMentions,
		); err != nil {
			return nil, fmt.Errorf("error scanning product type summary: %w", err)
		}
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading product type summary: %w", err)
	}

	return summaries, nil
}

// SearchMessages performs a case-insensitive substring search over message facts
func (ds *DataStore) SearchMessages(query string, limit int) ([]MessageFact, error) {
	if limit <= 0 {
		limit = 50
	}

	var facts []MessageFact
	err := ds.DB.
		Where("LOWER(message_text) LIKE ?", "%"+strings.ToLower(query)+"%").
		Order("view_count DESC, message_id ASC").
		Limit(limit).
		Find(&facts).Error
	if err != nil {
		return nil, fmt.Errorf("error searching messages for %q: %w", query, err)
	}

	return facts, nil
}
