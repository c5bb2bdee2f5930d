package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tidwall/gjson"

	"formbuilder-go/internal/airtable"
	"formbuilder-go/internal/models"
	"formbuilder-go/internal/service"
	"formbuilder-go/internal/storage"
)

const MaxBodySize = 1 << 20 // 1MB

type Handler struct {
	FormService   *service.FormService
	ExportService *service.ExportService
	AuthService   *service.AuthService
	Logger        *slog.Logger
}

func NewHandler(forms *service.FormService, export *service.ExportService, auth *service.AuthService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		FormService:   forms,
		ExportService: export,
		AuthService:   auth,
		Logger:        logger,
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.HealthCheck)

	// Forms
	r.Get("/forms/{id}", h.GetForm)
	r.Post("/admin/forms/{id}", h.SaveForm)
	r.Post("/forms/{id}/submit", h.SubmitForm)
	r.Post("/forms/{id}/visible", h.VisibleQuestions)

	// Responses
	r.Get("/forms/{id}/responses", h.ListResponses)
	r.Get("/forms/{id}/export/json", h.ExportJSON)
	r.Get("/forms/{id}/export/csv", h.ExportCSV)

	// Airtable
	r.Post("/webhooks/airtable", h.AirtableWebhook)
	r.Get("/auth/airtable/start", h.StartAuth)
	r.Get("/auth/airtable/callback", h.AuthCallback)
	r.Get("/auth/me", h.AuthStatus)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

// ============================================================================
// Forms
// ============================================================================

func (h *Handler) GetForm(w http.ResponseWriter, r *http.Request) {
	form, err := h.FormService.GetForm(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err, "Failed to load form")
		return
	}
	writeJSON(w, http.StatusOK, form)
}

// SaveForm stores the base questions plus the builder's extra questions. A
// body whose questions field is not an array saves no extras.
func (h *Handler) SaveForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "id")

	var req models.BuilderRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	var extras []models.Question
	if gjson.ParseBytes(req.Questions).IsArray() {
		if err := json.Unmarshal(req.Questions, &extras); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid questions")
			return
		}
	}

	count, err := h.FormService.SaveExtraQuestions(r.Context(), formID, extras)
	if err != nil {
		h.serviceError(w, err, "Failed to update form")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "extraFields": count})
}

func (h *Handler) SubmitForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "id")

	var req models.SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	resp, err := h.FormService.Submit(r.Context(), formID, req.Answers)
	if err != nil {
		h.serviceError(w, err, "Failed to save response")
		return
	}
	writeJSON(w, http.StatusOK, models.SubmitResponse{OK: true, ID: resp.ID})
}

// VisibleQuestions returns the questions a renderer shows for the posted answers
func (h *Handler) VisibleQuestions(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "id")

	var req models.SubmitRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	questions, err := h.FormService.VisibleQuestions(r.Context(), formID, req.Answers)
	if err != nil {
		h.serviceError(w, err, "Failed to load form")
		return
	}
	writeJSON(w, http.StatusOK, models.VisibleResponse{FormID: formID, Questions: questions})
}

// ============================================================================
// Responses
// ============================================================================

func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	list, err := h.FormService.ListResponses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.serviceError(w, err, "Failed to load responses")
		return
	}
	if list == nil {
		list = []models.Response{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) ExportJSON(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "id")
	data, err := h.ExportService.JSON(r.Context(), formID)
	if err != nil {
		h.serviceError(w, err, "Failed to export JSON")
		return
	}
	writeAttachment(w, "application/json", fmt.Sprintf("responses-%s.json", formID), data)
}

func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "id")
	data, err := h.ExportService.CSV(r.Context(), formID)
	if err != nil {
		h.serviceError(w, err, "Failed to export CSV")
		return
	}
	writeAttachment(w, "text/csv", fmt.Sprintf("responses-%s.csv", formID), data)
}

// ============================================================================
// Airtable
// ============================================================================

type webhookReply struct {
	OK bool `json:"ok"`
	service.WebhookResult
}

func (h *Handler) AirtableWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.FormService.ApplyWebhook(r.Context(), body)
	if errors.Is(err, service.ErrInvalidWebhook) {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err != nil {
		h.Logger.Error("api: webhook failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Webhook failed")
		return
	}
	writeJSON(w, http.StatusOK, webhookReply{OK: true, WebhookResult: result})
}

func (h *Handler) StartAuth(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.AuthService.Start()
	if errors.Is(err, airtable.ErrOAuthNotConfigured) {
		http.Error(w, "Airtable OAuth not configured (client id / redirect).", http.StatusInternalServerError)
		return
	}
	if err != nil {
		h.Logger.Error("api: oauth start failed", "error", err)
		http.Error(w, "Failed to start Airtable OAuth.", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

const connectedPage = "<h2>Airtable connected successfully.</h2><p>You can close this tab and go back to the app.</p>"

func (h *Handler) AuthCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	_, err := h.AuthService.Callback(r.Context(), query.Get("code"), query.Get("state"))
	switch {
	case err == nil:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(connectedPage))
	case errors.Is(err, service.ErrMissingCode):
		http.Error(w, "Missing ?code from Airtable", http.StatusBadRequest)
	case errors.Is(err, service.ErrInvalidState):
		http.Error(w, "Unknown or expired OAuth state. Start again.", http.StatusBadRequest)
	case errors.Is(err, airtable.ErrOAuthNotConfigured):
		http.Error(w, "Airtable OAuth not configured (client id / redirect).", http.StatusInternalServerError)
	default:
		h.Logger.Error("api: airtable token exchange failed", "error", err)
		http.Error(w, "Failed to exchange code for token.", http.StatusInternalServerError)
	}
}

func (h *Handler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.AuthService.Status(r.Context())
	if err != nil {
		h.Logger.Error("api: auth status failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, models.AuthStatusResponse{Connected: false})
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// ============================================================================
// Helpers
// ============================================================================

// serviceError maps service errors to status codes. Validation errors carry
// their own message, anything unexpected is logged and hidden behind fallback.
func (h *Handler) serviceError(w http.ResponseWriter, err error, fallback string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "Form not found")
	default:
		h.Logger.Error("api: "+fallback, "error", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// decodeBody reads a JSON body. An empty body decodes as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodySize)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: message})
}

func writeAttachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Write(data)
}
