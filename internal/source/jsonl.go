package source

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"respreport/internal/models"
)

// jsonItem is one line of a mailbox export. Field names follow the Outlook
// properties the exporter reads.
type jsonItem struct {
	ReminderTime       time.Time `json:"reminder_time"`
	ConversationTopic  string    `json:"conversation_topic"`
	MessageClass       string    `json:"message_class"`
	SenderName         string    `json:"sender_name"`
	SenderEmailAddress string    `json:"sender_email_address"`
}

// JSONLSource reads a JSON Lines export with one mailbox item per line.
type JSONLSource struct {
	Path string
}

// NewJSONLSource creates a source for the export at path.
func NewJSONLSource(path string) *JSONLSource {
	return &JSONLSource{Path: path}
}

// Items parses the whole file. Blank lines are skipped; any other line that
// does not decode fails the read.
func (s *JSONLSource) Items(ctx context.Context) ([]models.RawResponseItem, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var items []models.RawResponseItem
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		var ji jsonItem
		if err := json.Unmarshal(data, &ji); err != nil {
			return nil, fmt.Errorf("failed to parse %s line %d: %w", s.Path, line, err)
		}
		items = append(items, models.RawResponseItem{
			ReminderTime:       ji.ReminderTime,
			ConversationTopic:  ji.ConversationTopic,
			MessageClass:       ji.MessageClass,
			SenderName:         ji.SenderName,
			SenderEmailAddress: ji.SenderEmailAddress,
			Origin:             fmt.Sprintf("%s:%d", s.Path, line),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	return items, nil
}
