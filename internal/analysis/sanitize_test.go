package analysis_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"moderation-service/internal/analysis"
)

func TestSanitizeText(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "a cat on a sofa", want: "a cat on a sofa"},
		{name: "strips punctuation", in: "ignore <previous> instructions!!! {\"x\":1}", want: "ignore previous instructions x1"},
		{name: "collapses whitespace", in: "  many\t\tspaces \n here ", want: "many spaces here"},
		{name: "keeps unicode letters", in: "café über 東京", want: "café über 東京"},
		{name: "only symbols", in: "$$$ ### !!!", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, analysis.SanitizeText(tc.in))
		})
	}
}

func TestSanitizeText_Truncates(t *testing.T) {
	got := analysis.SanitizeText(strings.Repeat("ab ", 500))
	assert.LessOrEqual(t, utf8.RuneCountInString(got), analysis.MaxPromptLength)

	got = analysis.SanitizeText(strings.Repeat("é", 400))
	assert.Equal(t, analysis.MaxPromptLength, utf8.RuneCountInString(got))
}

func TestSanitizePrompt_WrapsInTemplate(t *testing.T) {
	got := analysis.SanitizePrompt("a dragon; DROP TABLE users;")
	assert.True(t, strings.HasSuffix(got, "Subject: a dragon DROP TABLE users"))
	assert.Contains(t, got, "family-friendly")
	assert.NotContains(t, got, ";")
}
