package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"moderation-service/internal/models"
	"moderation-service/internal/policy"
	"moderation-service/internal/repository"
	"moderation-service/internal/telemetry"
)

var (
	// ErrSubmissionNotFound is returned when the submission does not exist
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrShuttingDown is returned for async runs requested after Shutdown
	ErrShuttingDown = errors.New("moderator is shutting down")
)

// failureWriteTimeout bounds the best-effort error write
const failureWriteTimeout = 5 * time.Second

// SubmissionStore loads and updates submissions. A missing id must be
// reported with repository.ErrNotFound.
type SubmissionStore interface {
	GetByID(ctx context.Context, id string) (*models.Submission, error)
	Update(ctx context.Context, id string, upd models.SubmissionUpdate) error
}

// BlobStore persists generated images and returns their URL
type BlobStore interface {
	Upload(ctx context.Context, data []byte, contentType string) (string, error)
}

// StagePublisher announces stage transitions
type StagePublisher interface {
	PublishStage(ctx context.Context, ev models.StageEvent) error
}

// Engine runs the moderation pipeline over a record
type Engine interface {
	Run(ctx context.Context, rec models.Record) models.Record
}

// Dependencies wires a Moderator. Blobs, Events and Telemetry are optional.
type Dependencies struct {
	Store     SubmissionStore
	Engine    Engine
	Blobs     BlobStore
	Events    StagePublisher
	Telemetry *telemetry.Provider
}

// Moderator loads submissions, drives the pipeline and writes results back
type Moderator struct {
	store     SubmissionStore
	engine    Engine
	blobs     BlobStore
	events    StagePublisher
	telemetry *telemetry.Provider
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	closed   bool
	inFlight sync.WaitGroup
}

// NewModerator creates a moderator
func NewModerator(deps Dependencies, logger *zap.Logger) (*Moderator, error) {
	if deps.Store == nil {
		return nil, errors.New("submission store is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("pipeline engine is required")
	}
	if deps.Events == nil {
		deps.Events = nopPublisher{}
	}

	return &Moderator{
		store:     deps.Store,
		engine:    deps.Engine,
		blobs:     deps.Blobs,
		events:    deps.Events,
		telemetry: deps.Telemetry,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunModeration moderates a submission and waits for the result
func (m *Moderator) RunModeration(ctx context.Context, id string) (*models.ModerationResult, error) {
	tracker := m.newTracker(id)
	if err := m.enqueue(ctx, tracker); err != nil {
		return nil, err
	}
	return m.process(ctx, tracker)
}

// RunModerationAsync marks the submission queued and moderates it in the
// background. Progress is observable through the store.
func (m *Moderator) RunModerationAsync(ctx context.Context, id string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrShuttingDown
	}
	m.inFlight.Add(1)
	m.mu.Unlock()

	tracker := m.newTracker(id)
	if err := m.enqueue(ctx, tracker); err != nil {
		m.inFlight.Done()
		return err
	}

	go func() {
		defer m.inFlight.Done()

		// Detached from the request that queued the run
		if _, err := m.process(context.Background(), tracker); err != nil {
			m.logger.Error("Async moderation failed",
				zap.String("submission_id", id),
				zap.Error(err))
		}
	}()

	return nil
}

// Shutdown stops accepting async runs and waits for in-flight ones
func (m *Moderator) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for moderation runs: %w", ctx.Err())
	}
}

func (m *Moderator) enqueue(ctx context.Context, tracker *stageTracker) error {
	err := tracker.advance(ctx, models.StageQueued, models.SubmissionUpdate{})
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return ErrSubmissionNotFound
	}

	m.fail(ctx, tracker, err)
	return err
}

func (m *Moderator) process(ctx context.Context, tracker *stageTracker) (*models.ModerationResult, error) {
	start := time.Now()

	result, err := m.moderate(ctx, tracker)
	if err != nil {
		if !errors.Is(err, ErrSubmissionNotFound) {
			m.fail(ctx, tracker, err)
		}
		m.telemetry.RecordRun("", true, time.Since(start))
		return nil, err
	}

	m.telemetry.RecordRun(string(result.Status), false, time.Since(start))

	m.logger.Info("Submission moderated",
		zap.String("submission_id", tracker.id),
		zap.String("status", string(result.Status)),
		zap.Bool("image_replaced_by_ai", result.TechnicalAnalysis.ImageReplacedByAI),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

func (m *Moderator) moderate(ctx context.Context, tracker *stageTracker) (*models.ModerationResult, error) {
	if err := tracker.advance(ctx, models.StageAnalyzing, models.SubmissionUpdate{}); err != nil {
		return nil, err
	}

	sub, err := m.store.GetByID(ctx, tracker.id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to load submission: %w", err)
	}
	rec := models.NewRecord(sub)

	if err := tracker.advance(ctx, models.StageRunningModeration, models.SubmissionUpdate{}); err != nil {
		return nil, err
	}
	rec = m.engine.Run(ctx, rec)

	var uploadedURL string
	if rec.ImageReplacedByAI && rec.Generated != nil {
		if err := tracker.advance(ctx, models.StageUploadingGeneratedImage, models.SubmissionUpdate{}); err != nil {
			return nil, err
		}

		uploadedURL, err = m.storeGenerated(ctx, rec.Generated)
		if err != nil {
			m.logger.Warn("Failed to store generated image, keeping original",
				zap.String("submission_id", tracker.id),
				zap.Error(err))
			m.telemetry.RecordReplacement("upload_failed")

			rec = rec.WithoutReplacement().WithDiagnostic(models.StepDiagnostic{
				Step:    string(models.StageUploadingGeneratedImage),
				Message: err.Error(),
			})
		} else {
			m.telemetry.RecordReplacement("accepted")
			rec.Generated = &models.GeneratedImage{URL: uploadedURL, MIMEType: rec.Generated.MIMEType}
		}
	}

	result := policy.Finalize(rec)

	if err := tracker.advance(ctx, models.StageFinalizing, models.SubmissionUpdate{}); err != nil {
		return nil, err
	}

	upd, err := m.finalUpdate(sub, rec, result, uploadedURL)
	if err != nil {
		return nil, err
	}
	if err := tracker.advance(ctx, models.StageCompleted, upd); err != nil {
		return nil, err
	}

	return &result, nil
}

// storeGenerated uploads inline image bytes; a remote URL is kept as-is
func (m *Moderator) storeGenerated(ctx context.Context, img *models.GeneratedImage) (string, error) {
	if len(img.Data) == 0 {
		if img.URL == "" || strings.HasPrefix(img.URL, "data:") {
			return "", errors.New("generated image has no content")
		}
		return img.URL, nil
	}

	if m.blobs == nil {
		return "", errors.New("no blob store configured")
	}
	return m.blobs.Upload(ctx, img.Data, img.MIMEType)
}

func (m *Moderator) finalUpdate(sub *models.Submission, rec models.Record, result models.ModerationResult,
	uploadedURL string) (models.SubmissionUpdate, error) {
	analysis, err := json.Marshal(result.TechnicalAnalysis)
	if err != nil {
		return models.SubmissionUpdate{}, fmt.Errorf("failed to encode technical analysis: %w", err)
	}

	completedAt := m.now()
	upd := models.SubmissionUpdate{
		Status:            models.Ptr(result.Status),
		Summary:           models.Ptr(result.Summary),
		Reasoning:         models.Ptr(result.Reasoning),
		Toxicity:          models.Ptr(rec.Toxicity),
		NSFWText:          models.Ptr(rec.NSFWText),
		NSFWImage:         models.Ptr(rec.NSFWImage),
		Violence:          models.Ptr(rec.Violence),
		ImageReplacedByAI: models.Ptr(rec.ImageReplacedByAI),
		TechnicalAnalysis: models.Ptr(string(analysis)),
		CompletedAt:       &completedAt,
	}

	if rec.ImageDescription != "" {
		upd.ImageDescription = models.Ptr(rec.ImageDescription)
	}

	if rec.ImageReplacedByAI && uploadedURL != "" {
		upd.ImageURL = models.Ptr(uploadedURL)
		if sub.ImageURL != nil {
			upd.OriginalImageURL = models.Ptr(*sub.ImageURL)
		}
	}

	return upd, nil
}

// fail marks the submission as errored. The write is best effort and uses
// a context that survives cancellation of ctx.
func (m *Moderator) fail(ctx context.Context, tracker *stageTracker, cause error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	msg := cause.Error()
	err := tracker.advance(ctx, models.StageError, models.SubmissionUpdate{
		Status:       models.Ptr(models.StatusFlagged),
		Reasoning:    models.Ptr(msg),
		ErrorMessage: models.Ptr(msg),
	})
	if err != nil {
		m.logger.Error("Failed to record moderation error",
			zap.String("submission_id", tracker.id),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}

	m.logger.Error("Moderation failed",
		zap.String("submission_id", tracker.id),
		zap.Error(cause))
}

type nopPublisher struct{}

func (nopPublisher) PublishStage(context.Context, models.StageEvent) error { return nil }
