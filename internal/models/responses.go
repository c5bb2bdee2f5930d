package models

import (
	"encoding/json"
	"time"
)

// Form is a stored form definition
type Form struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	OwnerID           string     `json:"ownerId"`
	AirtableBaseID    *string    `json:"airtableBaseId"`
	AirtableTableName *string    `json:"airtableTableName"`
	Questions         []Question `json:"questions"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// Response is one persisted submission
type Response struct {
	ID                string    `json:"id"`
	FormID            string    `json:"formId"`
	Answers           AnswerMap `json:"answers"`
	AirtableRecordID  *string   `json:"airtableRecordId"`
	DeletedInAirtable bool      `json:"deletedInAirtable"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// User holds the Airtable connection of the form owner
type User struct {
	UserID         string     `json:"userId"`
	AirtableUserID *string    `json:"airtableUserId"`
	Email          string     `json:"email,omitempty"`
	Name           string     `json:"name,omitempty"`
	AccessToken    string     `json:"-"`
	RefreshToken   string     `json:"-"`
	LoginAt        *time.Time `json:"loginAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// SubmitRequest for /forms/{id}/submit and /forms/{id}/visible
type SubmitRequest struct {
	Answers AnswerMap `json:"answers"`
}

// SubmitResponse for /forms/{id}/submit
type SubmitResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id,omitempty"`
}

// BuilderRequest for /admin/forms/{id}. Questions is kept raw because a
// body without a questions array still saves the base questions.
type BuilderRequest struct {
	Questions json.RawMessage `json:"questions"`
}

// VisibleResponse for /forms/{id}/visible
type VisibleResponse struct {
	FormID    string     `json:"formId"`
	Questions []Question `json:"questions"`
}

// AuthStatusResponse for /auth/me
type AuthStatusResponse struct {
	Connected      bool       `json:"connected"`
	UserID         string     `json:"userId,omitempty"`
	AirtableUserID *string    `json:"airtableUserId,omitempty"`
	LoginAt        *time.Time `json:"loginAt,omitempty"`
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error string `json:"error"`
}
