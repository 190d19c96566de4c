package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"moderation-service/internal/models"
)

var errStageRegression = errors.New("stage transition not allowed")

// stageTracker advances one run through its stages. Each transition is
// written to the store before the caller continues.
type stageTracker struct {
	id      string
	current models.Stage
	m       *Moderator
}

func (m *Moderator) newTracker(id string) *stageTracker {
	return &stageTracker{id: id, m: m}
}

// advance writes next together with upd. On failure the tracker stays at its
// current stage.
func (t *stageTracker) advance(ctx context.Context, next models.Stage, upd models.SubmissionUpdate) error {
	if t.current != "" && !t.current.Precedes(next) {
		return fmt.Errorf("%w: %s -> %s", errStageRegression, t.current, next)
	}

	upd.Stage = &next
	if err := t.m.store.Update(ctx, t.id, upd); err != nil {
		return fmt.Errorf("failed to record stage %s: %w", next, err)
	}
	t.current = next
	t.m.telemetry.RecordStage(string(next))

	ev := models.StageEvent{
		SubmissionID: t.id,
		Stage:        next,
		Timestamp:    t.m.now(),
	}
	if upd.Status != nil {
		ev.Status = *upd.Status
	}
	if upd.ErrorMessage != nil {
		ev.Error = *upd.ErrorMessage
	}

	if err := t.m.events.PublishStage(ctx, ev); err != nil {
		t.m.logger.Warn("Failed to publish stage event",
			zap.String("submission_id", t.id),
			zap.String("stage", string(next)),
			zap.Error(err))
	}
	return nil
}
