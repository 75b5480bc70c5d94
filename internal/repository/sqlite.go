package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aigoflow/multichat-service/internal/models"
	"github.com/aigoflow/multichat-service/internal/store"
)

// SQLiteRepository implements Repository interface using SQLite
type SQLiteRepository struct {
	db          *store.DB
	historyRepo HistoryRepositoryInterface
	credRepo    CredentialRepositoryInterface
	feedbackRep FeedbackRepositoryInterface
	callRepo    CallRepositoryInterface
	sessionRepo SessionRepositoryInterface
	eventRepo   EventRepositoryInterface
}

func NewSQLiteRepository(db *store.DB) Repository {
	return &SQLiteRepository{
		db:          db,
		historyRepo: &SQLiteHistoryRepository{db: db},
		credRepo:    &SQLiteCredentialRepository{db: db},
		feedbackRep: &SQLiteFeedbackRepository{db: db},
		callRepo:    &SQLiteCallRepository{db: db},
		sessionRepo: &SQLiteSessionRepository{db: db},
		eventRepo:   &SQLiteEventRepository{db: db},
	}
}

func (r *SQLiteRepository) History() HistoryRepositoryInterface      { return r.historyRepo }
func (r *SQLiteRepository) Credentials() CredentialRepositoryInterface { return r.credRepo }
func (r *SQLiteRepository) Feedback() FeedbackRepositoryInterface    { return r.feedbackRep }
func (r *SQLiteRepository) Calls() CallRepositoryInterface           { return r.callRepo }
func (r *SQLiteRepository) Sessions() SessionRepositoryInterface     { return r.sessionRepo }
func (r *SQLiteRepository) Event() EventRepositoryInterface          { return r.eventRepo }

// SQLiteHistoryRepository handles conversation history
type SQLiteHistoryRepository struct {
	db *store.DB
}

func (r *SQLiteHistoryRepository) Append(ctx context.Context, userID string, entry models.HistoryEntry) error {
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO history(ts,user_id,type,message,source) VALUES(?,?,?,?,?)`,
		store.Timestamp(ts), userID, entry.Type, entry.Message, entry.Source)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

func (r *SQLiteHistoryRepository) List(ctx context.Context, userID string, limit int) ([]models.HistoryEntry, error) {
	query := `SELECT ts,type,message,source FROM history WHERE user_id = ? ORDER BY id DESC`
	args := []interface{}{userID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []models.HistoryEntry{}
	for rows.Next() {
		var e models.HistoryEntry
		var ts float64
		var source sql.NullString
		if err := rows.Scan(&ts, &e.Type, &e.Message, &source); err != nil {
			return nil, err
		}
		e.Timestamp = store.Time(ts)
		e.Source = source.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// newest first from the query, callers want oldest first
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// SQLiteCredentialRepository handles sealed API keys
type SQLiteCredentialRepository struct {
	db *store.DB
}

func (r *SQLiteCredentialRepository) Save(ctx context.Context, userID, service, sealedKey string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO credentials(user_id,service,sealed_key,is_valid,ts) VALUES(?,?,?,0,?)
		ON CONFLICT(user_id,service) DO UPDATE SET sealed_key=excluded.sealed_key, is_valid=0, ts=excluded.ts`,
		userID, service, sealedKey, store.Timestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save %s credentials: %w", service, err)
	}
	return nil
}

func (r *SQLiteCredentialRepository) Get(ctx context.Context, userID, service string) (string, error) {
	var sealed string
	err := r.db.QueryRowContext(ctx, `SELECT sealed_key FROM credentials WHERE user_id = ? AND service = ?`,
		userID, service).Scan(&sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s credentials: %w", service, err)
	}
	return sealed, nil
}

func (r *SQLiteCredentialRepository) List(ctx context.Context, userID string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT service, sealed_key FROM credentials WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var service, sealed string
		if err := rows.Scan(&service, &sealed); err != nil {
			return nil, err
		}
		out[service] = sealed
	}
	return out, rows.Err()
}

// SQLiteFeedbackRepository handles feedback votes
type SQLiteFeedbackRepository struct {
	db *store.DB
}

func (r *SQLiteFeedbackRepository) Record(ctx context.Context, fb models.Feedback) error {
	ts := fb.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO feedback(message_id,service,feedback,user_id,ts) VALUES(?,?,?,?,?)
		ON CONFLICT(message_id,service) DO UPDATE SET feedback=excluded.feedback, user_id=excluded.user_id, ts=excluded.ts`,
		fb.MessageID, fb.Service, fb.Feedback, fb.UserID, store.Timestamp(ts))
	if err != nil {
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	return nil
}

func (r *SQLiteFeedbackRepository) Summary(ctx context.Context) (map[string]models.FeedbackSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT service,
		SUM(CASE WHEN feedback = ? THEN 1 ELSE 0 END),
		SUM(CASE WHEN feedback = ? THEN 1 ELSE 0 END)
		FROM feedback GROUP BY service`, models.FeedbackPositive, models.FeedbackNegative)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize feedback: %w", err)
	}
	defer rows.Close()

	out := make(map[string]models.FeedbackSummary)
	for rows.Next() {
		var service string
		var s models.FeedbackSummary
		if err := rows.Scan(&service, &s.Positive, &s.Negative); err != nil {
			return nil, err
		}
		out[service] = s
	}
	return out, rows.Err()
}

// SQLiteCallRepository handles provider call logging
type SQLiteCallRepository struct {
	db *store.DB
}

func (r *SQLiteCallRepository) Log(ctx context.Context, c *models.CallLog) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO calls(
		ts, call_id, message_id, user_id, source, service, model, raw_input, response_text, input_len, tokens_in, tokens_out, cost, dur_ms, status, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		store.Timestamp(c.Timestamp), c.CallID, c.MessageID, c.UserID, c.Source, c.Service, c.Model,
		c.RawInput, c.Response, len(c.RawInput), c.TokensIn, c.TokensOut, c.Cost, float64(c.DurationMs), c.Status, c.Error)
	if err != nil {
		return fmt.Errorf("failed to log call: %w", err)
	}
	return nil
}

func (r *SQLiteCallRepository) Totals(ctx context.Context) ([]models.ServiceTotals, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT service,
		COUNT(*),
		SUM(CASE WHEN status = 'ok' THEN 0 ELSE 1 END),
		COALESCE(SUM(cost), 0),
		COALESCE(SUM(tokens_in), 0),
		COALESCE(SUM(tokens_out), 0),
		COALESCE(AVG(dur_ms), 0)
		FROM calls GROUP BY service ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to total calls: %w", err)
	}
	defer rows.Close()

	var totals []models.ServiceTotals
	for rows.Next() {
		var t models.ServiceTotals
		if err := rows.Scan(&t.Service, &t.Calls, &t.Errors, &t.TotalCost, &t.TokensIn, &t.TokensOut, &t.AvgLatencyMs); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *SQLiteCallRepository) Recent(ctx context.Context, limit int) ([]*models.CallLog, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ts,call_id,message_id,user_id,source,service,model,raw_input,response_text,input_len,tokens_in,tokens_out,cost,dur_ms,status,error
		FROM calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.CallLog
	for rows.Next() {
		var log models.CallLog
		var tsFloat, durMs float64

		if err := rows.Scan(
			&tsFloat, &log.CallID, &log.MessageID, &log.UserID, &log.Source, &log.Service, &log.Model,
			&log.RawInput, &log.Response, &log.InputLen, &log.TokensIn, &log.TokensOut,
			&log.Cost, &durMs, &log.Status, &log.Error,
		); err == nil {
			log.Timestamp = store.Time(tsFloat)
			log.DurationMs = int64(durMs)
			logs = append(logs, &log)
		}
	}

	return logs, rows.Err()
}

// SQLiteSessionRepository handles sessions and OAuth tokens
type SQLiteSessionRepository struct {
	db *store.DB
}

func (r *SQLiteSessionRepository) Create(ctx context.Context, s *models.Session) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO sessions(token,user_id,email,guest,created,expires) VALUES(?,?,?,?,?,?)`,
		s.Token, s.UserID, s.Email, s.Guest, store.Timestamp(s.CreatedAt), store.Timestamp(s.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) Get(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	var created, expires float64
	err := r.db.QueryRowContext(ctx, `SELECT token,user_id,email,guest,created,expires FROM sessions WHERE token = ?`, token).
		Scan(&s.Token, &s.UserID, &s.Email, &s.Guest, &created, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	s.CreatedAt = store.Time(created)
	s.ExpiresAt = store.Time(expires)
	if time.Now().After(s.ExpiresAt) {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *SQLiteSessionRepository) Delete(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

func (r *SQLiteSessionRepository) SaveToken(ctx context.Context, tok *models.OAuthToken) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO oauth_tokens(email,access_token,refresh_token,token_type,expiry) VALUES(?,?,?,?,?)
		ON CONFLICT(email) DO UPDATE SET access_token=excluded.access_token,
			refresh_token=CASE WHEN excluded.refresh_token = '' THEN oauth_tokens.refresh_token ELSE excluded.refresh_token END,
			token_type=excluded.token_type, expiry=excluded.expiry`,
		tok.Email, tok.AccessToken, tok.RefreshToken, tok.TokenType, store.Timestamp(tok.Expiry))
	if err != nil {
		return fmt.Errorf("failed to save oauth token: %w", err)
	}
	return nil
}

func (r *SQLiteSessionRepository) GetToken(ctx context.Context, email string) (*models.OAuthToken, error) {
	var tok models.OAuthToken
	var expiry float64
	err := r.db.QueryRowContext(ctx, `SELECT email,access_token,refresh_token,token_type,expiry FROM oauth_tokens WHERE email = ?`, email).
		Scan(&tok.Email, &tok.AccessToken, &tok.RefreshToken, &tok.TokenType, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth token: %w", err)
	}
	tok.Expiry = store.Time(expiry)
	return &tok, nil
}

// SQLiteEventRepository handles event logging
type SQLiteEventRepository struct {
	db *store.DB
}

func (r *SQLiteEventRepository) LogEvent(ctx context.Context, level, code, msg string, meta map[string]interface{}) error {
	r.db.Event(level, code, msg, meta)
	return nil
}
