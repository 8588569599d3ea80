package ingest

import (
	"context"
)

// RecordSource is where new channel messages come from. Scraping stays an
// external collaborator behind this interface: the default implementation
// only picks up files the scraper already dropped, and tests swap in an
// in-memory source.
type RecordSource interface {
	Name() string
	// Fetch returns newly available messages grouped by channel
	Fetch(ctx context.Context) (map[string][]Message, error)
}

// FileSource drains a spool directory of per-channel JSON files into the
// lake. The scraper writes into the spool; Fetch reads whatever is there.
type FileSource struct {
	SpoolDir string
}

// Name implements RecordSource
func (s *FileSource) Name() string { return "file:" + s.SpoolDir }

// Fetch implements RecordSource
func (s *FileSource) Fetch(ctx context.Context) (map[string][]Message, error) {
	paths, err := listSpoolFiles(s.SpoolDir)
	if err != nil {
		return nil, err
	}

	byChannel := make(map[string][]Message)
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		messages, err := readMessageFile(path)
		if err != nil {
			return nil, err
		}
		for i := range messages {
			name := messages[i].ChannelName
			byChannel[name] = append(byChannel[name], messages[i])
		}
	}
	return byChannel, nil
}

// Acquire pulls from a source and lands the results in the lake under
// today's partition. Returns the number of messages written.
func Acquire(ctx context.Context, source RecordSource, lake *Lake) (int64, error) {
	byChannel, err := source.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for channel, messages := range byChannel {
		if len(messages) == 0 {
			continue
		}
		if _, err := lake.WriteMessages(channel, messages); err != nil {
			return total, err
		}
		total += int64(len(messages))
	}
	return total, nil
}
