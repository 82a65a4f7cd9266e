package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/feedlens/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool   *pgxpool.Pool
	sealer *Sealer
}

// NewPostgresStore creates a new PostgresStore. Credentials are sealed with sealer.
func NewPostgresStore(pool *pgxpool.Pool, sealer *Sealer) *PostgresStore {
	return &PostgresStore{pool: pool, sealer: sealer}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Feedback ---

// CreateFeedback inserts a report, assigning an id and creation time when unset.
func (s *PostgresStore) CreateFeedback(ctx context.Context, report *models.FeedbackReport) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	fctx, err := json.Marshal(report.Context)
	if err != nil {
		return fmt.Errorf("encode feedback context: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback_reports (id, type, title, description, context, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		report.ID, report.Type, report.Title, report.Description, fctx, report.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create feedback: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFeedback(ctx context.Context, id string) (*models.FeedbackReport, error) {
	var r models.FeedbackReport
	var fctx []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, type, title, description, context, created_at FROM feedback_reports WHERE id = $1`, id,
	).Scan(&r.ID, &r.Type, &r.Title, &r.Description, &fctx, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feedback: %w", err)
	}
	if err := json.Unmarshal(fctx, &r.Context); err != nil {
		return nil, fmt.Errorf("decode feedback context: %w", err)
	}
	return &r, nil
}

// --- Analyses ---

func (s *PostgresStore) ListFeedback(ctx context.Context, filter FeedbackFilter) ([]*models.FeedbackReport, int, error) {
	conditions := []string{"TRUE"}
	args := []any{}
	argIdx := 1

	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("f.type = $%d", argIdx))
		args = append(args, filter.Type)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", argIdx))
		args = append(args, string(filter.Status))
		argIdx++
	}

	from := "feedback_reports f LEFT JOIN feedback_analyses a ON a.feedback_id = f.id"
	where := strings.Join(conditions, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+from+" WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count feedback: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf(
		`SELECT f.id, f.type, f.title, f.description, f.context, f.created_at
		 FROM %s WHERE %s ORDER BY f.created_at DESC, f.id LIMIT $%d OFFSET $%d`,
		from, where, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	reports := []*models.FeedbackReport{}
	for rows.Next() {
		var r models.FeedbackReport
		var fctx []byte
		if err := rows.Scan(&r.ID, &r.Type, &r.Title, &r.Description, &fctx, &r.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan feedback: %w", err)
		}
		if err := json.Unmarshal(fctx, &r.Context); err != nil {
			return nil, 0, fmt.Errorf("decode feedback context: %w", err)
		}
		reports = append(reports, &r)
	}
	return reports, total, rows.Err()
}

func (s *PostgresStore) GetAnalysis(ctx context.Context, feedbackID string) (*models.FeedbackAnalysis, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx,
		`SELECT document FROM feedback_analyses WHERE feedback_id = $1`, feedbackID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}

	var a models.FeedbackAnalysis
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &a, nil
}

// PutAnalysis upserts the full document keyed by feedback id. Concurrent
// writers are not detected; the last write wins.
func (s *PostgresStore) PutAnalysis(ctx context.Context, a *models.FeedbackAnalysis) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO feedback_analyses (feedback_id, status, document, updated_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (feedback_id) DO UPDATE SET
		   status = EXCLUDED.status,
		   document = EXCLUDED.document,
		   updated_at = EXCLUDED.updated_at`,
		a.FeedbackID, string(a.Status), doc, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put analysis: %w", err)
	}
	return nil
}

// --- Settings ---

func (s *PostgresStore) GetActiveProviderConfig(ctx context.Context) (models.ProviderConfig, error) {
	var doc []byte
	err := s.pool.QueryRow(ctx, `SELECT config FROM ai_settings WHERE id = 1`).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ProviderConfig{}, ErrNotFound
	}
	if err != nil {
		return models.ProviderConfig{}, fmt.Errorf("get ai settings: %w", err)
	}

	var cfg models.ProviderConfig
	if err := json.Unmarshal(doc, &cfg); err != nil {
		return models.ProviderConfig{}, fmt.Errorf("decode ai settings: %w", err)
	}
	return cfg, nil
}

func (s *PostgresStore) PutProviderConfig(ctx context.Context, cfg models.ProviderConfig) error {
	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode ai settings: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO ai_settings (id, config, updated_at) VALUES (1, $1, NOW())
		 ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`, doc)
	if err != nil {
		return fmt.Errorf("put ai settings: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetCredential(ctx context.Context, kind models.ProviderKind) (string, error) {
	var sealed []byte
	err := s.pool.QueryRow(ctx,
		`SELECT sealed FROM provider_credentials WHERE provider = $1`, string(kind),
	).Scan(&sealed)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s credential: %w", kind, err)
	}

	secret, err := s.sealer.Open(sealed)
	if err != nil {
		return "", fmt.Errorf("open %s credential: %w", kind, err)
	}
	return string(secret), nil
}

func (s *PostgresStore) PutCredential(ctx context.Context, kind models.ProviderKind, secret string) error {
	if secret == "" {
		if _, err := s.pool.Exec(ctx, `DELETE FROM provider_credentials WHERE provider = $1`, string(kind)); err != nil {
			return fmt.Errorf("delete %s credential: %w", kind, err)
		}
		return nil
	}

	sealed, err := s.sealer.Seal([]byte(secret))
	if err != nil {
		return fmt.Errorf("seal %s credential: %w", kind, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO provider_credentials (provider, sealed, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (provider) DO UPDATE SET sealed = EXCLUDED.sealed, updated_at = NOW()`,
		string(kind), sealed)
	if err != nil {
		return fmt.Errorf("put %s credential: %w", kind, err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

var _ Store = (*PostgresStore)(nil)
