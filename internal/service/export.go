package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"formbuilder-go/internal/models"
)

// CSVHeader is the first line of every CSV export
const CSVHeader = "id,createdAt,deletedInAirtable,answersJson"

const exportTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ResponseLister is the part of FormService the exporter needs
type ResponseLister interface {
	ListResponses(ctx context.Context, formID string) ([]models.Response, error)
}

// ExportService writes a form's responses as downloadable files
type ExportService struct {
	responses ResponseLister
}

func NewExportService(responses ResponseLister) *ExportService {
	return &ExportService{responses: responses}
}

// JSON returns the responses, newest first, as an indented JSON array
func (s *ExportService) JSON(ctx context.Context, formID string) ([]byte, error) {
	list, err := s.responses.ListResponses(ctx, formID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Response{}
	}
	return json.MarshalIndent(list, "", "  ")
}

// CSV returns one quoted row per response under CSVHeader. Rows are joined
// by a newline with no trailing newline.
func (s *ExportService) CSV(ctx context.Context, formID string) ([]byte, error) {
	list, err := s.responses.ListResponses(ctx, formID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := writeCSV(&buf, list); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeCSV quotes every field. encoding/csv only quotes when a field needs
// it, and consumers of this export expect all four columns quoted.
func writeCSV(w io.Writer, list []models.Response) error {
	lines := make([]string, 0, len(list))
	for _, resp := range list {
		answers := resp.Answers
		if answers == nil {
			answers = models.AnswerMap{}
		}
		encoded, err := marshalPlain(answers)
		if err != nil {
			encoded = "{}"
		}

		created := ""
		if !resp.CreatedAt.IsZero() {
			created = resp.CreatedAt.UTC().Format(exportTimeLayout)
		}
		deleted := "false"
		if resp.DeletedInAirtable {
			deleted = "true"
		}

		lines = append(lines, strings.Join([]string{
			quote(resp.ID),
			quote(created),
			quote(deleted),
			quote(encoded),
		}, ","))
	}

	_, err := io.WriteString(w, CSVHeader+"\n"+strings.Join(lines, "\n"))
	return err
}

func quote(field string) string {
	return `"` + strings.ReplaceAll(field, `"`, `""`) + `"`
}

// marshalPlain encodes v without escaping HTML characters
func marshalPlain(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
