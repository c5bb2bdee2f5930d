package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"formbuilder-go/internal/models"
)

type staticLister struct {
	list []models.Response
	err  error
}

func (s staticLister) ListResponses(context.Context, string) ([]models.Response, error) {
	return s.list, s.err
}

func TestExportCSV(t *testing.T) {
	rec := "rec1"
	exporter := NewExportService(staticLister{list: []models.Response{
		{
			ID:                "b",
			Answers:           models.AnswerMap{"quote": `say "hi"`, "tag": "<b>"},
			AirtableRecordID:  &rec,
			DeletedInAirtable: true,
			CreatedAt:         time.Date(2024, 3, 1, 12, 0, 5, 123e6, time.FixedZone("CET", 3600)),
		},
		{ID: "a", CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
	}})

	out, err := exporter.CSV(context.Background(), "demo-form-1")
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	want := strings.Join([]string{
		CSVHeader,
		`"b","2024-03-01T11:00:05.123Z","true","{""quote"":""say \""hi\"""",""tag"":""<b>""}"`,
		`"a","2024-03-01T10:00:00.000Z","false","{}"`,
	}, "\n")
	if string(out) != want {
		t.Fatalf("got\n%s\nwant\n%s", out, want)
	}
}

func TestExportCSVEmpty(t *testing.T) {
	out, err := NewExportService(staticLister{}).CSV(context.Background(), "f")
	if err != nil {
		t.Fatalf("CSV: %v", err)
	}
	if string(out) != CSVHeader+"\n" {
		t.Fatalf("unexpected empty export %q", out)
	}
}

func TestExportJSON(t *testing.T) {
	out, err := NewExportService(staticLister{}).JSON(context.Background(), "f")
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if string(out) != "[]" {
		t.Fatalf("expected empty array, got %q", out)
	}

	exporter := NewExportService(staticLister{list: []models.Response{{ID: "a", FormID: "f", Answers: models.AnswerMap{"name": "Ada"}}}})
	out, err = exporter.JSON(context.Background(), "f")
	if err != nil {
		t.Fatalf("JSON: %v", err)
	}
	if !strings.Contains(string(out), "\n  {\n    \"id\": \"a\"") {
		t.Fatalf("expected two-space indentation, got %s", out)
	}
	var decoded []models.Response
	if err := json.Unmarshal(out, &decoded); err != nil || decoded[0].Answers["name"] != "Ada" {
		t.Fatalf("round trip failed: %v %+v", err, decoded)
	}
}

func TestExportPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	exporter := NewExportService(staticLister{err: boom})
	if _, err := exporter.JSON(context.Background(), "f"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := exporter.CSV(context.Background(), "f"); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}
