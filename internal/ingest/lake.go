// Package ingest moves data from the file lake and collaborator exports
// into the warehouse input tables.
package ingest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/datastore"
	"github.com/tphakala/medtel-go/internal/errors"
	"github.com/tphakala/medtel-go/internal/logging"
)

// lakeMessagesDir is the lake subtree the scraper writes into, one
// directory per scrape date.
const lakeMessagesDir = "raw/telegram_messages"

// Message is the wire shape of a scraped channel message in the lake
type Message struct {
	MessageID    int64      `json:"message_id"`
	ChannelName  string     `json:"channel_name"`
	ChannelTitle string     `json:"channel_title"`
	MessageDate  *time.Time `json:"message_date"`
	MessageText  string     `json:"message_text"`
	HasMedia     bool       `json:"has_media"`
	ImagePath    string     `json:"image_path"`
	Views        int64      `json:"views"`
	Forwards     int64      `json:"forwards"`
}

// ToRaw converts a lake message into a raw warehouse row
func (m *Message) ToRaw(loadedAt time.Time) datastore.RawMessage {
	return datastore.RawMessage{
		MessageID:    m.MessageID,
		ChannelName:  m.ChannelName,
		ChannelTitle: m.ChannelTitle,
		MessageDate:  m.MessageDate,
		MessageText:  m.MessageText,
		HasMedia:     m.HasMedia,
		ImagePath:    m.ImagePath,
		ViewCount:    m.Views,
		ForwardCount: m.Forwards,
		LoadedAt:     loadedAt,
	}
}

// Lake reads and writes the partitioned file lake
type Lake struct {
	BasePath string
	// Now is replaceable in tests
	Now func() time.Time
}

// NewLake builds a lake rooted at the configured base path
func NewLake(settings *conf.Settings) *Lake {
	return &Lake{BasePath: settings.Pipeline.Lake.BasePath, Now: time.Now}
}

func (l *Lake) now() time.Time {
	if l.Now != nil {
		return l.Now()
	}
	return time.Now()
}

// dayDir returns the lake directory for one scrape date
func (l *Lake) dayDir(date string) string {
	return filepath.Join(l.BasePath, filepath.FromSlash(lakeMessagesDir), date)
}

// Days returns every date partition present in the lake, oldest first.
// Directory names sort lexically because they are ISO dates.
func (l *Lake) Days() ([]string, error) {
	root := filepath.Join(l.BasePath, filepath.FromSlash(lakeMessagesDir))
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("lake_path", root).
			Build()
	}

	var days []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := time.Parse(conf.DateLayout, entry.Name()); err != nil {
			continue
		}
		days = append(days, entry.Name())
	}
	if len(days) == 0 {
		return nil, errors.Newf("no date partitions under %s", root).
			Component("ingest").
			Category(errors.CategoryNotFound).
			Build()
	}
	sort.Strings(days)
	return days, nil
}

// LatestDay returns the most recent date partition present in the lake
func (l *Lake) LatestDay() (string, error) {
	days, err := l.Days()
	if err != nil {
		return "", err
	}
	return days[len(days)-1], nil
}

// LoadDay reads every JSON file in one date partition. When date is empty
// today's partition is used, falling back to the newest one present so a
// morning run still loads yesterday's scrape.
func (l *Lake) LoadDay(date string) ([]Message, string, error) {
	log := logging.ForService("ingest")

	if date == "" {
		date = l.now().Format(conf.DateLayout)
		if _, err := os.Stat(l.dayDir(date)); os.IsNotExist(err) {
			latest, latestErr := l.LatestDay()
			if latestErr != nil {
				return nil, "", latestErr
			}
			log.Info("No partition for today, falling back to latest", "today", date, "latest", latest)
			date = latest
		}
	}

	dir := l.dayDir(date)
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, date, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("lake_dir", dir).
			Build()
	}
	sort.Strings(paths)

	var messages []Message
	for _, path := range paths {
		batch, err := readMessageFile(path)
		if err != nil {
			return nil, date, err
		}
		log.Debug("Lake file read", "path", path, "messages", len(batch))
		messages = append(messages, batch...)
	}
	return messages, date, nil
}

func readMessageFile(path string) ([]Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var messages []Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("path", path).
			Build()
	}
	return messages, nil
}

// WriteMessages appends a channel's scrape output into the lake under
// today's date partition. Used by the acquire step; the scraper
// collaborator writes the same layout.
func (l *Lake) WriteMessages(channelName string, messages []Message) (string, error) {
	dir := l.dayDir(l.now().Format(conf.DateLayout))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("lake_dir", dir).
			Build()
	}

	path := filepath.Join(dir, channelName+".json")
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return "", errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileParsing).
			Context("channel", channelName).
			Build()
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return "", errors.New(err).
			Component("ingest").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return path, nil
}

// LoadIntoStore reads lake partitions and appends their messages to the
// raw table. An explicit date loads that partition; an empty date loads
// today's when present and otherwise backfills every partition in the
// lake, so a cold warehouse catches up on the full scrape history. Raw is
// append-only; rows already present for the same (message_id, loaded_at)
// pair are ignored, so reloading a partition is idempotent.
func (l *Lake) LoadIntoStore(ds datastore.Interface, date string) (int64, error) {
	if date == "" {
		today := l.now().Format(conf.DateLayout)
		if _, err := os.Stat(l.dayDir(today)); os.IsNotExist(err) {
			return l.backfill(ds)
		}
		date = today
	}
	return l.loadPartition(ds, date)
}

// backfill loads every date partition, oldest first
func (l *Lake) backfill(ds datastore.Interface) (int64, error) {
	days, err := l.Days()
	if err != nil {
		return 0, err
	}
	logging.ForService("ingest").Info("No partition for today, backfilling lake history", "partitions", len(days))

	var total int64
	for _, day := range days {
		inserted, err := l.loadPartition(ds, day)
		if err != nil {
			return total, err
		}
		total += inserted
	}
	return total, nil
}

func (l *Lake) loadPartition(ds datastore.Interface, date string) (int64, error) {
	messages, day, err := l.LoadDay(date)
	if err != nil {
		return 0, err
	}

	loadedAt, err := time.Parse(conf.DateLayout, day)
	if err != nil {
		loadedAt = l.now()
	}

	raws := make([]datastore.RawMessage, 0, len(messages))
	for i := range messages {
		raws = append(raws, messages[i].ToRaw(loadedAt))
	}

	inserted, err := ds.InsertRawMessages(raws)
	if err != nil {
		return 0, err
	}

	logging.ForService("ingest").Info("Lake partition loaded",
		"date", day,
		"messages", len(messages),
		"inserted", inserted)
	return inserted, nil
}
