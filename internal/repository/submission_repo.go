package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"moderation-service/internal/models"
)

// ErrNotFound is returned when no submission has the requested id
var ErrNotFound = errors.New("submission not found")

const defaultListLimit = 50

const submissionColumns = `id, submission_type, text_content, image_url, original_image_url,
	image_description, status, stage, summary, reasoning, toxicity, nsfw_text, nsfw_image,
	violence, image_replaced_by_ai, technical_analysis, error_message, created_at, updated_at,
	completed_at`

// SubmissionRepository stores submissions in SQLite or PostgreSQL
type SubmissionRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSubmissionRepository creates a new repository
func NewSubmissionRepository(db *sqlx.DB, logger *zap.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts sub, assigning an id and timestamps when missing
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.Status == "" {
		sub.Status = models.StatusPending
	}

	now := r.now()
	sub.CreatedAt = now
	sub.UpdatedAt = now

	query := r.db.Rebind(`
		INSERT INTO submissions (
			id, submission_type, text_content, image_url, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.Type,
		sub.TextContent,
		sub.ImageURL,
		sub.Status,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save submission: %w", err)
	}

	r.logger.Debug("Submission created",
		zap.String("submission_id", sub.ID),
		zap.String("type", string(sub.Type)))

	return nil
}

// GetByID returns the submission or ErrNotFound
func (r *SubmissionRepository) GetByID(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	query := r.db.Rebind(`SELECT ` + submissionColumns + ` FROM submissions WHERE id = ?`)

	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return &sub, nil
}

// Update writes the non-nil fields of upd. updated_at is always refreshed.
func (r *SubmissionRepository) Update(ctx context.Context, id string, upd models.SubmissionUpdate) error {
	var (
		sets []string
		args []interface{}
	)

	set := func(column string, value interface{}) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if upd.Stage != nil {
		set("stage", *upd.Stage)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}
	if upd.ImageURL != nil {
		set("image_url", *upd.ImageURL)
	}
	if upd.OriginalImageURL != nil {
		set("original_image_url", *upd.OriginalImageURL)
	}
	if upd.ImageDescription != nil {
		set("image_description", *upd.ImageDescription)
	}
	if upd.Summary != nil {
		set("summary", *upd.Summary)
	}
	if upd.Reasoning != nil {
		set("reasoning", *upd.Reasoning)
	}
	if upd.Toxicity != nil {
		set("toxicity", *upd.Toxicity)
	}
	if upd.NSFWText != nil {
		set("nsfw_text", *upd.NSFWText)
	}
	if upd.NSFWImage != nil {
		set("nsfw_image", *upd.NSFWImage)
	}
	if upd.Violence != nil {
		set("violence", *upd.Violence)
	}
	if upd.ImageReplacedByAI != nil {
		set("image_replaced_by_ai", *upd.ImageReplacedByAI)
	}
	if upd.TechnicalAnalysis != nil {
		set("technical_analysis", *upd.TechnicalAnalysis)
	}
	if upd.ErrorMessage != nil {
		set("error_message", *upd.ErrorMessage)
	}
	if upd.CompletedAt != nil {
		set("completed_at", *upd.CompletedAt)
	}
	set("updated_at", r.now())

	query := r.db.Rebind(`UPDATE submissions SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns submissions, newest first
func (r *SubmissionRepository) List(ctx context.Context, limit, offset int) ([]*models.Submission, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	subs := []*models.Submission{}
	query := r.db.Rebind(`SELECT ` + submissionColumns + ` FROM submissions ORDER BY created_at DESC LIMIT ? OFFSET ?`)

	if err := r.db.SelectContext(ctx, &subs, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return subs, nil
}
