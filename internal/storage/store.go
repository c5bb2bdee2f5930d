// Package storage persists forms, responses and the Airtable user.
package storage

import (
	"context"
	"errors"

	"formbuilder-go/internal/models"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary used by the services
type Store interface {
	GetForm(ctx context.Context, id string) (models.Form, error)
	// UpsertForm writes every column of form
	UpsertForm(ctx context.Context, form models.Form) error
	// SaveFormQuestions creates the form or replaces only its title and
	// questions, keeping owner and Airtable settings.
	SaveFormQuestions(ctx context.Context, id, title string, questions []models.Question) error

	CreateResponse(ctx context.Context, resp models.Response) error
	// ListResponses returns the responses of a form, newest first
	ListResponses(ctx context.Context, formID string) ([]models.Response, error)
	MarkDeletedInAirtable(ctx context.Context, recordID string) (int64, error)
	ReplaceAnswersByAirtableID(ctx context.Context, recordID string, answers models.AnswerMap) (int64, error)

	GetUser(ctx context.Context, userID string) (models.User, error)
	UpsertUser(ctx context.Context, user models.User) error

	Close() error
}
