package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"

	"formbuilder-go/internal/models"
)

// Airtable webhook event types
const (
	EventRecordDeleted = "record.deleted"
	EventRecordUpdated = "record.updated"
)

// ErrInvalidWebhook is returned for a body that is not JSON
var ErrInvalidWebhook = errors.New("invalid webhook payload")

// WebhookResult counts what a webhook delivery changed
type WebhookResult struct {
	Events  int `json:"events"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
	Updated int `json:"updated"`
}

// ApplyWebhook applies an Airtable change notification. The body is either
// {"events":[...]} or one bare event. Events without an airtableRecordId or
// with an unknown type are skipped.
func (s *FormService) ApplyWebhook(ctx context.Context, body []byte) (WebhookResult, error) {
	var result WebhookResult
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !gjson.ValidBytes(body) {
		return result, ErrInvalidWebhook
	}

	root := gjson.ParseBytes(body)
	events := []gjson.Result{root}
	if list := root.Get("events"); list.IsArray() {
		events = list.Array()
	}

	for _, evt := range events {
		result.Events++
		recordID := evt.Get("airtableRecordId")
		if !evt.IsObject() || recordID.Type != gjson.String || recordID.Str == "" {
			result.Skipped++
			continue
		}

		switch evt.Get("type").String() {
		case EventRecordDeleted:
			rows, err := s.store.MarkDeletedInAirtable(ctx, recordID.Str)
			if err != nil {
				return result, fmt.Errorf("mark %s deleted: %w", recordID.Str, err)
			}
			result.Deleted += int(rows)
			s.logger.Info("webhook: marked deleted", "record_id", recordID.Str, "rows", rows)

		case EventRecordUpdated:
			raw := evt.Get("answers")
			if !raw.IsObject() {
				result.Skipped++
				continue
			}
			var answers models.AnswerMap
			if err := json.Unmarshal([]byte(raw.Raw), &answers); err != nil {
				result.Skipped++
				continue
			}
			rows, err := s.store.ReplaceAnswersByAirtableID(ctx, recordID.Str, answers)
			if err != nil {
				return result, fmt.Errorf("update %s answers: %w", recordID.Str, err)
			}
			result.Updated += int(rows)
			s.logger.Info("webhook: updated answers", "record_id", recordID.Str, "rows", rows)

		default:
			result.Skipped++
		}
	}
	return result, nil
}
