package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"moderation-service/internal/analysis"
)

func TestHarmScanner(t *testing.T) {
	scanner := analysis.NewHarmScanner(nil)

	testCases := []struct {
		name        string
		description string
		harmful     bool
	}{
		{name: "safe scene", description: "A golden retriever playing fetch in a sunny park.", harmful: false},
		{name: "violence", description: "Two people in a VIOLENT fight.", harmful: true},
		{name: "nudity", description: "A figure shown with partial nudity.", harmful: true},
		{name: "gore", description: "The scene contains blood and gore.", harmful: true},
		{name: "empty", description: "", harmful: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.harmful, scanner.Harmful(tc.description))
		})
	}
}

func TestHarmScanner_CustomMarkers(t *testing.T) {
	scanner := analysis.NewHarmScanner([]string{" Clown ", ""})

	assert.Equal(t, []string{"clown"}, scanner.Scan("a scary clown appears"))
	assert.Empty(t, scanner.Scan("a violent scene"))
}
