// Package smssource provides a file-backed service.SMSSource for
// environments where the device's native SMS inbox isn't reachable from a
// desktop CLI. A capture tool (outside this module's scope per spec.md
// §1's mobile-UI non-goal) writes one JSON object per sighting; this
// package only reads it back.
package smssource

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/ledgermesh/ledgermesh/internal/service"
)

// record is the on-disk shape of one captured SMS sighting.
type record struct {
	ID         string `json:"id"`
	Sender     string `json:"sender"`
	Body       string `json:"body"`
	DateMillis int64  `json:"date_millis"`
}

// FileSource reads service.SMSMessage values from a JSON array file,
// sorted ascending by DateMillis.
type FileSource struct {
	messages []service.SMSMessage
}

// NewFileSource loads and sorts every message in path.
func NewFileSource(path string) (*FileSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sms source file %s: %w", path, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing sms source file %s: %w", path, err)
	}

	messages := make([]service.SMSMessage, 0, len(records))
	for _, r := range records {
		messages = append(messages, service.SMSMessage{
			ID:         r.ID,
			Sender:     r.Sender,
			Body:       r.Body,
			DateMillis: r.DateMillis,
		})
	}
	sort.Slice(messages, func(i, j int) bool { return messages[i].DateMillis < messages[j].DateMillis })

	return &FileSource{messages: messages}, nil
}

// All returns every loaded message.
func (f *FileSource) All(_ context.Context) ([]service.SMSMessage, error) {
	return f.messages, nil
}

// Since returns messages strictly newer than afterMillis.
func (f *FileSource) Since(_ context.Context, afterMillis int64) ([]service.SMSMessage, error) {
	var out []service.SMSMessage
	for _, m := range f.messages {
		if m.DateMillis > afterMillis {
			out = append(out, m)
		}
	}
	return out, nil
}
