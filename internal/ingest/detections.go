package ingest

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/logging"
)

// detectionsCSV is where the vision collaborator drops its output,
// relative to the lake base path.
const detectionsCSV = "processed/yolo_detections.csv"

// DetectionsPath returns the expected location of the detection export
func DetectionsPath(settings *conf.Settings) string {
	return filepath.Join(settings.Pipeline.Lake.BasePath, filepath.FromSlash(detectionsCSV))
}

// LoadDetections parses the collaborator's CSV export. Column order is not
// assumed; the header row names the columns. Rows with an unparseable
// message id are skipped and counted rather than failing the whole file,
// the collaborator occasionally appends partial rows.
func LoadDetections(path string, now time.Time) ([]datastore.ImageDetection, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, 0, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	if _, ok := col["message_id"]; !ok {
		return nil, 0, errors.Newf("detections csv missing message_id column").
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Context("header", strings.Join(header, ",")).
			Build()
	}

	field := func(record []string, name string) string {
		idx, ok := col[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var detections []datastore.ImageDetection
	skipped := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, errors.New(err).
				Component("ingest").
				Category(errors.CategoryFileParsing).
				Context("path", path).
				Build()
		}

		messageID, err := strconv.ParseInt(field(record, "message_id"), 10, 64)
		if err != nil || messageID == 0 {
			skipped++
			continue
		}

		detectionCount, _ := strconv.Atoi(field(record, "detection_count"))
		confidence, _ := strconv.ParseFloat(field(record, "confidence_score"), 64)

		detections = append(detections, datastore.ImageDetection{
			MessageID:       messageID,
			ChannelName:     field(record, "channel_name"),
			ImagePath:       field(record, "image_path"),
			DetectedObjects: field(record, "detected_objects"),
			DetectionCount:  detectionCount,
			ImageCategory:   normalizeCategory(field(record, "image_category")),
			ConfidenceScore: confidence,
			HasPerson:       parseBool(field(record, "has_person")),
			HasProduct:      parseBool(field(record, "has_product")),
			DetectedAt:      now,
		})
	}

	return detections, skipped, nil
}

// normalizeCategory lower-cases the category and maps blanks to "other"
func normalizeCategory(category string) string {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return "other"
	}
	return category
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "1", "yes":
		return true
	default:
		return false
	}
}

// LoadDetectionsIntoStore reads the CSV and upserts it into the detections
// table. Upsert, not insert: the collaborator reruns the model and the
// newest results win.
func LoadDetectionsIntoStore(ds datastore.Interface, path string, now time.Time) (int64, error) {
	detections, skipped, err := LoadDetections(path, now)
	if err != nil {
		return 0, err
	}

	count, err := ds.UpsertImageDetections(detections)
	if err != nil {
		return 0, err
	}

	logging.ForService("ingest").Info("Detections loaded",
		"path", path,
		"rows", count,
		"skipped", skipped)
	return count, nil
}
