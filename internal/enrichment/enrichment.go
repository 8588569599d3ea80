// Package enrichment joins image detection results onto the message facts.
package enrichment

import (
	"sort"

	"github.com/tphakala/medtel-go/internal/datastore"
)

// Stats summarises an enrichment join
type Stats struct {
	Facts            int
	FactsWithImage   int
	Detections       int
	Joined           int
	MissingDetection int
	MissingImagePath int
}

// DetectionIndex maps message ids to their detection rows
func DetectionIndex(detections []datastore.ImageDetection) map[int64]*datastore.ImageDetection {
	index := make(map[int64]*datastore.ImageDetection, len(detections))
	for i := range detections {
		index[detections[i].MessageID] = &detections[i]
	}
	return index
}

// Join produces one enrichment row per fact that has a resolved image AND a
// detection record with a usable image path. Facts without detection output
// are absent from the result, not represented with nulls: enrichment
// coverage is partial until the vision collaborator catches up.
func Join(facts []datastore.MessageFact, staged map[int64]*datastore.StagedMessage, detections map[int64]*datastore.ImageDetection) ([]datastore.EnrichmentFact, Stats) {
	stats := Stats{Facts: len(facts), Detections: len(detections)}

	rows := make([]datastore.EnrichmentFact, 0, len(detections))
	for i := range facts {
		f := &facts[i]

		msg, ok := staged[f.MessageID]
		if !ok || !msg.HasImageResolved {
			continue
		}
		stats.FactsWithImage++

		det, ok := detections[f.MessageID]
		if !ok {
			stats.MissingDetection++
			continue
		}
		if det.ImagePath == "" {
			stats.MissingImagePath++
			continue
		}

		rows = append(rows, datastore.EnrichmentFact{
			MessageID:       f.MessageID,
			ChannelKey:      f.ChannelKey,
			DateKey:         f.DateKey,
			ImagePath:       det.ImagePath,
			DetectedObjects: det.DetectedObjects,
			DetectionCount:  det.DetectionCount,
			ImageCategory:   det.ImageCategory,
			ConfidenceScore: det.ConfidenceScore,
			HasPerson:       det.HasPerson,
			HasProduct:      det.HasProduct,
			ViewCount:       f.ViewCount,
			ForwardCount:    f.ForwardCount,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].MessageID < rows[j].MessageID })

	stats.Joined = len(rows)
	return rows, stats
}
