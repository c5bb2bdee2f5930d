package service

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"formbuilder-go/internal/models"
	"formbuilder-go/internal/storage"
	"formbuilder-go/internal/telemetry"
)

// RecordSyncer mirrors a submission to an external table
type RecordSyncer interface {
	Configured() bool
	CreateRecord(ctx context.Context, formID string, answers models.AnswerMap) (string, error)
}

// FormOptions configures the FormService
type FormOptions struct {
	DefaultFormID      string
	OwnerID            string
	AirtableBaseID     string
	AirtableTableName  string
	PurgeHiddenAnswers bool
}

type FormService struct {
	store  storage.Store
	syncer RecordSyncer
	opts   FormOptions
	logger *slog.Logger
	tracer trace.Tracer

	newID func() string
	now   func() time.Time
}

func NewFormService(store storage.Store, syncer RecordSyncer, opts FormOptions, logger *slog.Logger) *FormService {
	if opts.DefaultFormID == "" {
		opts.DefaultFormID = "demo-form-1"
	}
	if opts.OwnerID == "" {
		opts.OwnerID = "demo-user-1"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FormService{
		store:  store,
		syncer: syncer,
		opts:   opts,
		logger: logger,
		tracer: telemetry.Tracer("formbuilder/service"),
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// EnsureDefaultForm resets the default form to the base questions. It runs
// on every start.
func (s *FormService) EnsureDefaultForm(ctx context.Context) error {
	form := models.Form{
		ID:                s.opts.DefaultFormID,
		Title:             DefaultFormTitle,
		OwnerID:           s.opts.OwnerID,
		AirtableBaseID:    optional(s.opts.AirtableBaseID),
		AirtableTableName: optional(s.opts.AirtableTableName),
		Questions:         BaseQuestions(),
	}
	if err := s.store.UpsertForm(ctx, form); err != nil {
		return fmt.Errorf("ensure default form: %w", err)
	}
	s.logger.Info("forms: default form reset to base questions", "form_id", form.ID)
	return nil
}

func (s *FormService) GetForm(ctx context.Context, id string) (models.Form, error) {
	return s.store.GetForm(ctx, id)
}

// SaveExtraQuestions stores the base questions followed by extras and
// returns how many extras were kept. Blank keys, labels and types are filled
// in the way the builder does.
func (s *FormService) SaveExtraQuestions(ctx context.Context, formID string, extras []models.Question) (int, error) {
	questions := BaseQuestions()
	for i, q := range extras {
		questions = append(questions, normalizeExtra(i, q))
	}

	if err := s.store.SaveFormQuestions(ctx, formID, DefaultFormTitle, questions); err != nil {
		return 0, err
	}
	s.logger.Info("forms: form updated", "form_id", formID, "extra_fields", len(extras))
	return len(extras), nil
}

func normalizeExtra(i int, q models.Question) models.Question {
	n := strconv.Itoa(i + 1)
	if strings.TrimSpace(q.QuestionKey) == "" {
		q.QuestionKey = "q" + n
	}
	q.Label = strings.TrimSpace(q.Label)
	if q.Label == "" {
		q.Label = "Question " + n
	}
	if strings.TrimSpace(q.Type) == "" {
		q.Type = models.QuestionTypeText
	}
	return q
}

// VisibleQuestions loads a form and filters it for an answer snapshot
func (s *FormService) VisibleQuestions(ctx context.Context, formID string, answers models.AnswerMap) ([]models.Question, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return VisibleQuestions(form.Questions, answers), nil
}

// Submit validates answers against the form, mirrors them to Airtable when
// configured and persists the response. A *ValidationError means the client
// must fix its input. Airtable failures never fail the submission.
func (s *FormService) Submit(ctx context.Context, formID string, answers models.AnswerMap) (models.Response, error) {
	ctx, span := s.tracer.Start(ctx, "forms.Submit", trace.WithAttributes(attribute.String("form.id", formID)))
	defer span.End()

	if answers == nil {
		answers = models.AnswerMap{}
	}

	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load form")
		return models.Response{}, err
	}

	if err := ValidateSubmission(form.Questions, answers); err != nil {
		span.SetAttributes(attribute.Bool("form.valid", false))
		return models.Response{}, err
	}
	span.SetAttributes(attribute.Bool("form.valid", true))

	stored := answers
	if s.opts.PurgeHiddenAnswers {
		stored = PurgeHidden(form.Questions, answers)
	}

	now := s.now().UTC()
	resp := models.Response{
		ID:               s.newID(),
		FormID:           formID,
		Answers:          stored,
		AirtableRecordID: s.syncRecord(ctx, formID, stored),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.CreateResponse(ctx, resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save response")
		return models.Response{}, err
	}

	s.logger.Info("forms: response saved", "form_id", formID, "response_id", resp.ID)
	return resp, nil
}

func (s *FormService) syncRecord(ctx context.Context, formID string, answers models.AnswerMap) *string {
	if s.syncer == nil || !s.syncer.Configured() {
		return nil
	}
	recordID, err := s.syncer.CreateRecord(ctx, formID, answers)
	if err != nil {
		s.logger.Warn("airtable: record create failed", "form_id", formID, "error", err)
		return nil
	}
	s.logger.Info("airtable: record created", "form_id", formID, "record_id", recordID)
	return &recordID
}

// ListResponses returns a form's responses, newest first
func (s *FormService) ListResponses(ctx context.Context, formID string) ([]models.Response, error) {
	return s.store.ListResponses(ctx, formID)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
