package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"moderation-service/internal/models"
	"moderation-service/internal/service"
	"moderation-service/internal/telemetry"
)

const originalURL = "https://example.com/original.png"

func textSubmission(id string) *models.Submission {
	return &models.Submission{
		ID:          id,
		Type:        models.SubmissionText,
		TextContent: models.Ptr("hello world"),
		Status:      models.StatusPending,
	}
}

func imageSubmission(id string) *models.Submission {
	return &models.Submission{
		ID:          id,
		Type:        models.SubmissionImage,
		TextContent: models.Ptr("my cat"),
		ImageURL:    models.Ptr(originalURL),
		Status:      models.StatusPending,
	}
}

func approveText(_ context.Context, rec models.Record) models.Record {
	rec.Toxicity = 0.1
	rec.Decision = models.StatusApproved
	rec.Summary = "Safe"
	return rec
}

// replaceImage mimics a run where a violent image was replaced and verified
func replaceImage(img *models.GeneratedImage) engineFunc {
	return func(_ context.Context, rec models.Record) models.Record {
		rec.Toxicity = 0.1
		rec.Decision = models.StatusRejected
		rec.Summary = "Violent image"
		rec.ShouldReplaceImage = true
		rec.Generated = img
		rec.PreReplacementViolence = true
		rec.ImageReplacedByAI = true
		return rec
	}
}

func newModerator(t *testing.T, deps service.Dependencies) *service.Moderator {
	t.Helper()
	if deps.Telemetry == nil {
		deps.Telemetry = telemetry.NewProvider(prometheus.NewRegistry())
	}
	m, err := service.NewModerator(deps, zap.NewNop())
	require.NoError(t, err)
	return m
}

func TestRunModeration_TextOnly(t *testing.T) {
	store := newMemoryStore(textSubmission("s1"))
	publisher := &recordingPublisher{}
	m := newModerator(t, service.Dependencies{Store: store, Engine: engineFunc(approveText), Events: publisher})

	result, err := m.RunModeration(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusApproved, result.Status)
	assert.Equal(t, "Content approved: Toxicity: 10.0%", result.Reasoning)
	assert.Equal(t, []models.Stage{
		models.StageQueued,
		models.StageAnalyzing,
		models.StageRunningModeration,
		models.StageFinalizing,
		models.StageCompleted,
	}, store.stages())

	sub := store.get("s1")
	assert.Equal(t, models.StatusApproved, sub.Status)
	require.NotNil(t, sub.CompletedAt)
	require.NotNil(t, sub.TechnicalAnalysis)

	var analysis models.TechnicalAnalysis
	require.NoError(t, json.Unmarshal([]byte(*sub.TechnicalAnalysis), &analysis))
	assert.Equal(t, 0.1, analysis.Toxicity)

	require.Len(t, publisher.events, 5)
	assert.Equal(t, models.StageCompleted, publisher.events[4].Stage)
	assert.Equal(t, models.StatusApproved, publisher.events[4].Status)
}

func TestRunModeration_UploadsReplacement(t *testing.T) {
	store := newMemoryStore(imageSubmission("s1"))
	blobs := &fakeBlobs{url: "https://cdn.example.com/generated/x.png"}
	img := &models.GeneratedImage{URL: "data:image/png;base64,AAAA", Data: []byte{1, 2, 3}, MIMEType: "image/png"}

	m := newModerator(t, service.Dependencies{Store: store, Engine: replaceImage(img), Blobs: blobs})

	result, err := m.RunModeration(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, []byte{1, 2, 3}, blobs.got)
	assert.Equal(t, models.StatusApproved, result.Status)
	assert.True(t, result.TechnicalAnalysis.ImageReplacedByAI)
	assert.Equal(t, blobs.url, result.TechnicalAnalysis.GeneratedImageURL)
	assert.Contains(t, store.stages(), models.StageUploadingGeneratedImage)

	sub := store.get("s1")
	require.NotNil(t, sub.ImageURL)
	assert.Equal(t, blobs.url, *sub.ImageURL)
	require.NotNil(t, sub.OriginalImageURL)
	assert.Equal(t, originalURL, *sub.OriginalImageURL)
	assert.True(t, sub.ImageReplacedByAI)
}

func TestRunModeration_RemoteGeneratedURLIsKept(t *testing.T) {
	store := newMemoryStore(imageSubmission("s1"))
	blobs := &fakeBlobs{}
	img := &models.GeneratedImage{URL: "https://images.example.com/generated.png", MIMEType: "image/png"}

	m := newModerator(t, service.Dependencies{Store: store, Engine: replaceImage(img), Blobs: blobs})

	result, err := m.RunModeration(context.Background(), "s1")
	require.NoError(t, err)

	assert.Zero(t, blobs.calls)
	assert.Equal(t, img.URL, result.TechnicalAnalysis.GeneratedImageURL)
	assert.Equal(t, img.URL, *store.get("s1").ImageURL)
}

func TestRunModeration_UploadFailureKeepsOriginal(t *testing.T) {
	store := newMemoryStore(imageSubmission("s1"))
	blobs := &fakeBlobs{err: errors.New("bucket unavailable")}
	img := &models.GeneratedImage{URL: "data:image/png;base64,AAAA", Data: []byte{1}, MIMEType: "image/png"}

	m := newModerator(t, service.Dependencies{Store: store, Engine: replaceImage(img), Blobs: blobs})

	result, err := m.RunModeration(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, models.StatusRejected, result.Status)
	assert.False(t, result.TechnicalAnalysis.ImageReplacedByAI)
	assert.True(t, result.TechnicalAnalysis.Violence)
	assert.Empty(t, result.TechnicalAnalysis.GeneratedImageURL)
	require.NotEmpty(t, result.Diagnostics)
	assert.Equal(t, string(models.StageUploadingGeneratedImage), result.Diagnostics[len(result.Diagnostics)-1].Step)

	sub := store.get("s1")
	assert.Equal(t, originalURL, *sub.ImageURL)
	assert.Nil(t, sub.OriginalImageURL)
	assert.False(t, sub.ImageReplacedByAI)
	assert.Equal(t, models.StageCompleted, *sub.Stage)
}

func TestRunModeration_NotFound(t *testing.T) {
	store := newMemoryStore()
	m := newModerator(t, service.Dependencies{Store: store, Engine: engineFunc(approveText)})

	_, err := m.RunModeration(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrSubmissionNotFound)
	assert.Empty(t, store.stages())
}

func TestRunModeration_FinalWriteFailure(t *testing.T) {
	store := newMemoryStore(textSubmission("s1"))
	store.failOn = models.StageCompleted

	m := newModerator(t, service.Dependencies{Store: store, Engine: engineFunc(approveText)})

	_, err := m.RunModeration(context.Background(), "s1")
	require.Error(t, err)

	sub := store.get("s1")
	assert.Equal(t, models.StageError, *sub.Stage)
	assert.Equal(t, models.StatusFlagged, sub.Status)
	require.NotNil(t, sub.Reasoning)
	assert.Equal(t, err.Error(), *sub.Reasoning)
	require.NotNil(t, sub.ErrorMessage)
	assert.Equal(t, err.Error(), *sub.ErrorMessage)
	assert.Equal(t, []models.Stage{
		models.StageQueued,
		models.StageAnalyzing,
		models.StageRunningModeration,
		models.StageFinalizing,
		models.StageError,
	}, store.stages())
}

func TestRunModeration_PublisherFailureIsIgnored(t *testing.T) {
	store := newMemoryStore(textSubmission("s1"))
	publisher := &recordingPublisher{err: errors.New("redis down")}
	m := newModerator(t, service.Dependencies{Store: store, Engine: engineFunc(approveText), Events: publisher})

	result, err := m.RunModeration(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Status)
}

func TestRunModerationAsync(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := newMemoryStore(textSubmission("s1"))
	release := make(chan struct{})
	engine := engineFunc(func(ctx context.Context, rec models.Record) models.Record {
		<-release
		return approveText(ctx, rec)
	})
	m := newModerator(t, service.Dependencies{Store: store, Engine: engine})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, m.RunModerationAsync(ctx, "s1"))
	// The run must outlive the request context
	cancel()

	assert.Equal(t, models.StageQueued, store.stages()[0])

	close(release)

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	require.NoError(t, m.Shutdown(shutdownCtx))

	sub := store.get("s1")
	assert.Equal(t, models.StageCompleted, *sub.Stage)
	assert.Equal(t, models.StatusApproved, sub.Status)

	assert.ErrorIs(t, m.RunModerationAsync(context.Background(), "s1"), service.ErrShuttingDown)
}

func TestRunModerationAsync_NotFound(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := newModerator(t, service.Dependencies{Store: newMemoryStore(), Engine: engineFunc(approveText)})

	err := m.RunModerationAsync(context.Background(), "missing")
	assert.ErrorIs(t, err, service.ErrSubmissionNotFound)
	require.NoError(t, m.Shutdown(context.Background()))
}

func TestNewModerator_RequiresDependencies(t *testing.T) {
	_, err := service.NewModerator(service.Dependencies{Engine: engineFunc(approveText)}, zap.NewNop())
	require.Error(t, err)

	_, err = service.NewModerator(service.Dependencies{Store: newMemoryStore()}, zap.NewNop())
	require.Error(t, err)
}
