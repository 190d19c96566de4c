package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"moderation-service/internal/models"
)

func TestStage_Precedes(t *testing.T) {
	testCases := []struct {
		from, to models.Stage
		want     bool
	}{
		{models.StageQueued, models.StageAnalyzing, true},
		{models.StageRunningModeration, models.StageFinalizing, true},
		{models.StageRunningModeration, models.StageUploadingGeneratedImage, true},
		{models.StageFinalizing, models.StageAnalyzing, false},
		{models.StageAnalyzing, models.StageAnalyzing, false},
		{models.StageFinalizing, models.StageError, true},
		{models.StageQueued, models.StageError, true},
		{models.StageCompleted, models.StageError, false},
		{models.StageError, models.StageQueued, false},
	}

	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, tc.from.Precedes(tc.to))
		})
	}
}

func TestParseDecision(t *testing.T) {
	status, ok := models.ParseDecision(" Rejected ")
	assert.True(t, ok)
	assert.Equal(t, models.StatusRejected, status)

	_, ok = models.ParseDecision("maybe")
	assert.False(t, ok)
}

func TestRecord_WithoutReplacement(t *testing.T) {
	rec := models.Record{
		ImageReplacedByAI:       true,
		ShouldReplaceImage:      true,
		Generated:               &models.GeneratedImage{URL: "https://x"},
		PreReplacementNSFWImage: true,
	}

	got := rec.WithoutReplacement()
	assert.True(t, got.NSFWImage)
	assert.False(t, got.Violence)
	assert.False(t, got.ImageReplacedByAI)
	assert.Nil(t, got.Generated)
	assert.True(t, rec.ImageReplacedByAI)
}

func TestRecord_WithDiagnosticDoesNotAlias(t *testing.T) {
	base := models.Record{Diagnostics: make([]models.StepDiagnostic, 0, 4)}
	a := base.WithDiagnostic(models.StepDiagnostic{Step: "a"})
	b := base.WithDiagnostic(models.StepDiagnostic{Step: "b"})

	assert.Equal(t, "a", a.Diagnostics[0].Step)
	assert.Equal(t, "b", b.Diagnostics[0].Step)
	assert.Empty(t, base.Diagnostics)
}
