package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"formbuilder-go/internal/models"
	"formbuilder-go/internal/storage/migrations"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by default.
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// SQLStore implements Store on Postgres (lib/pq) or SQLite (modernc).
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database, checks it is reachable and applies the
// embedded migrations. driver is "postgres" or "sqlite".
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("%s dsn is required", driver)
	}

	switch driver {
	case "postgres":
	case "sqlite":
		if dsn != ":memory:" && !strings.Contains(dsn, "?") {
			dsn += "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
		}
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// one writer; also keeps an in-memory database on a single connection
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if err := ApplyMigrations(ctx, db, migrations.FS, "."); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

// Close releases the underlying database resources.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the driver name the store was opened with
func (s *SQLStore) Driver() string {
	return s.driver
}

type formRow struct {
	ID                string         `db:"id"`
	Title             string         `db:"title"`
	OwnerID           string         `db:"owner_id"`
	AirtableBaseID    sql.NullString `db:"airtable_base_id"`
	AirtableTableName sql.NullString `db:"airtable_table_name"`
	Questions         string         `db:"questions"`
	UpdatedAt         int64          `db:"updated_at"`
}

type responseRow struct {
	ID                string         `db:"id"`
	FormID            string         `db:"form_id"`
	Answers           string         `db:"answers"`
	AirtableRecordID  sql.NullString `db:"airtable_record_id"`
	DeletedInAirtable bool           `db:"deleted_in_airtable"`
	CreatedAt         int64          `db:"created_at"`
	UpdatedAt         int64          `db:"updated_at"`
}

type userRow struct {
	UserID         string         `db:"user_id"`
	AirtableUserID sql.NullString `db:"airtable_user_id"`
	Email          string         `db:"email"`
	Name           string         `db:"name"`
	AccessToken    string         `db:"access_token"`
	RefreshToken   string         `db:"refresh_token"`
	LoginAt        sql.NullInt64  `db:"login_at"`
	CreatedAt      int64          `db:"created_at"`
	UpdatedAt      int64          `db:"updated_at"`
}

func (s *SQLStore) GetForm(ctx context.Context, id string) (models.Form, error) {
	var row formRow
	query := s.db.Rebind(`SELECT id, title, owner_id, airtable_base_id, airtable_table_name, questions, updated_at
		FROM forms WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Form{}, ErrNotFound
		}
		return models.Form{}, fmt.Errorf("get form %s: %w", id, err)
	}

	form := models.Form{
		ID:                row.ID,
		Title:             row.Title,
		OwnerID:           row.OwnerID,
		AirtableBaseID:    fromNullString(row.AirtableBaseID),
		AirtableTableName: fromNullString(row.AirtableTableName),
		UpdatedAt:         fromMillis(row.UpdatedAt),
	}
	if err := json.Unmarshal([]byte(row.Questions), &form.Questions); err != nil {
		return models.Form{}, fmt.Errorf("decode questions of form %s: %w", id, err)
	}
	if form.Questions == nil {
		form.Questions = []models.Question{}
	}
	return form, nil
}

func (s *SQLStore) UpsertForm(ctx context.Context, form models.Form) error {
	questions, err := encodeQuestions(form.Questions)
	if err != nil {
		return err
	}
	query := s.db.Rebind(`INSERT INTO forms (id, title, owner_id, airtable_base_id, airtable_table_name, questions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			owner_id = excluded.owner_id,
			airtable_base_id = excluded.airtable_base_id,
			airtable_table_name = excluded.airtable_table_name,
			questions = excluded.questions,
			updated_at = excluded.updated_at`)
	_, err = s.db.ExecContext(ctx, query,
		form.ID,
		form.Title,
		form.OwnerID,
		toNullString(form.AirtableBaseID),
		toNullString(form.AirtableTableName),
		questions,
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("upsert form %s: %w", form.ID, err)
	}
	return nil
}

func (s *SQLStore) SaveFormQuestions(ctx context.Context, id, title string, questions []models.Question) error {
	encoded, err := encodeQuestions(questions)
	if err != nil {
		return err
	}
	query := s.db.Rebind(`INSERT INTO forms (id, title, questions, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			questions = excluded.questions,
			updated_at = excluded.updated_at`)
	if _, err := s.db.ExecContext(ctx, query, id, title, encoded, toMillis(time.Now())); err != nil {
		return fmt.Errorf("save questions of form %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) CreateResponse(ctx context.Context, resp models.Response) error {
	if strings.TrimSpace(resp.ID) == "" {
		return fmt.Errorf("response id is required")
	}
	answers, err := encodeAnswers(resp.Answers)
	if err != nil {
		return err
	}
	created := resp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := resp.UpdatedAt
	if updated.IsZero() {
		updated = created
	}

	query := s.db.Rebind(`INSERT INTO responses
		(id, form_id, answers, airtable_record_id, deleted_in_airtable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err = s.db.ExecContext(ctx, query,
		resp.ID,
		resp.FormID,
		answers,
		toNullString(resp.AirtableRecordID),
		resp.DeletedInAirtable,
		toMillis(created),
		toMillis(updated),
	)
	if err != nil {
		return fmt.Errorf("create response: %w", err)
	}
	return nil
}

func (s *SQLStore) ListResponses(ctx context.Context, formID string) ([]models.Response, error) {
	var rows []responseRow
	query := s.db.Rebind(`SELECT id, form_id, answers, airtable_record_id, deleted_in_airtable, created_at, updated_at
		FROM responses WHERE form_id = ? ORDER BY created_at DESC, id DESC`)
	if err := s.db.SelectContext(ctx, &rows, query, formID); err != nil {
		return nil, fmt.Errorf("list responses of form %s: %w", formID, err)
	}

	out := make([]models.Response, 0, len(rows))
	for _, row := range rows {
		resp := models.Response{
			ID:                row.ID,
			FormID:            row.FormID,
			AirtableRecordID:  fromNullString(row.AirtableRecordID),
			DeletedInAirtable: row.DeletedInAirtable,
			CreatedAt:         fromMillis(row.CreatedAt),
			UpdatedAt:         fromMillis(row.UpdatedAt),
		}
		if err := json.Unmarshal([]byte(row.Answers), &resp.Answers); err != nil {
			return nil, fmt.Errorf("decode answers of response %s: %w", row.ID, err)
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *SQLStore) MarkDeletedInAirtable(ctx context.Context, recordID string) (int64, error) {
	query := s.db.Rebind(`UPDATE responses SET deleted_in_airtable = ?, updated_at = ? WHERE airtable_record_id = ?`)
	res, err := s.db.ExecContext(ctx, query, true, toMillis(time.Now()), recordID)
	if err != nil {
		return 0, fmt.Errorf("mark record %s deleted: %w", recordID, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) ReplaceAnswersByAirtableID(ctx context.Context, recordID string, answers models.AnswerMap) (int64, error) {
	encoded, err := encodeAnswers(answers)
	if err != nil {
		return 0, err
	}
	query := s.db.Rebind(`UPDATE responses SET answers = ?, updated_at = ? WHERE airtable_record_id = ?`)
	res, err := s.db.ExecContext(ctx, query, encoded, toMillis(time.Now()), recordID)
	if err != nil {
		return 0, fmt.Errorf("replace answers of record %s: %w", recordID, err)
	}
	return res.RowsAffected()
}

func (s *SQLStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	var row userRow
	query := s.db.Rebind(`SELECT user_id, airtable_user_id, email, name, access_token, refresh_token, login_at, created_at, updated_at
		FROM users WHERE user_id = ?`)
	if err := s.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, ErrNotFound
		}
		return models.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}

	user := models.User{
		UserID:         row.UserID,
		AirtableUserID: fromNullString(row.AirtableUserID),
		Email:          row.Email,
		Name:           row.Name,
		AccessToken:    row.AccessToken,
		RefreshToken:   row.RefreshToken,
		CreatedAt:      fromMillis(row.CreatedAt),
		UpdatedAt:      fromMillis(row.UpdatedAt),
	}
	if row.LoginAt.Valid {
		loginAt := fromMillis(row.LoginAt.Int64)
		user.LoginAt = &loginAt
	}
	return user, nil
}

func (s *SQLStore) UpsertUser(ctx context.Context, user models.User) error {
	if strings.TrimSpace(user.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	now := toMillis(time.Now())
	var loginAt sql.NullInt64
	if user.LoginAt != nil {
		loginAt = sql.NullInt64{Int64: toMillis(*user.LoginAt), Valid: true}
	}

	query := s.db.Rebind(`INSERT INTO users
		(user_id, airtable_user_id, email, name, access_token, refresh_token, login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			airtable_user_id = excluded.airtable_user_id,
			email = excluded.email,
			name = excluded.name,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			login_at = excluded.login_at,
			updated_at = excluded.updated_at`)
	_, err := s.db.ExecContext(ctx, query,
		user.UserID,
		toNullString(user.AirtableUserID),
		user.Email,
		user.Name,
		user.AccessToken,
		user.RefreshToken,
		loginAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", user.UserID, err)
	}
	return nil
}

func encodeQuestions(questions []models.Question) (string, error) {
	if questions == nil {
		questions = []models.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return "", fmt.Errorf("encode questions: %w", err)
	}
	return string(data), nil
}

func encodeAnswers(answers models.AnswerMap) (string, error) {
	if answers == nil {
		answers = models.AnswerMap{}
	}
	data, err := json.Marshal(answers)
	if err != nil {
		return "", fmt.Errorf("encode answers: %w", err)
	}
	return string(data), nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

func toNullString(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}

func fromNullString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	s := value.String
	return &s
}
