package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeReply(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain text unchanged",
			input:    "Ship the onboarding flow this week.",
			expected: "Ship the onboarding flow this week.",
		},
		{
			name:     "strips bold and italics",
			input:    "This is **really** important, _trust_ me.",
			expected: "This is really important, trust me.",
		},
		{
			name:     "keeps link text, drops url",
			input:    "Check [your dashboard](https://vamo.app/dash) for details.",
			expected: "Check your dashboard for details.",
		},
		{
			name:     "strips emoji",
			input:    "Great progress! 🚀 Keep going 🎉",
			expected: "Great progress! Keep going",
		},
		{
			name:     "collapses whitespace",
			input:    "One step   at\n\na time",
			expected: "One step at a time",
		},
		{
			name:     "strips headings and code ticks",
			input:    "# Plan\nUse `npm run dev` locally",
			expected: "Plan Use npm run dev locally",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeReply(tt.input))
		})
	}
}
