package slack

import (
	"strings"
	"testing"
	"unicode/utf8"

	goslack "github.com/slack-go/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBreakerOpenMessage(t *testing.T) {
	blocks := BuildBreakerOpenMessage("llm", 5, "https://grantfinder.example.com")

	require.Len(t, blocks, 2)
	section, ok := blocks[0].(*goslack.SectionBlock)
	require.True(t, ok)
	assert.Contains(t, section.Text.Text, ":red_circle:")
	assert.Contains(t, section.Text.Text, "`llm`")
	assert.Contains(t, section.Text.Text, "5 consecutive failures")

	action, ok := blocks[1].(*goslack.ActionBlock)
	require.True(t, ok)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Contains(t, btn.URL, "/health/circuit-breakers")
}

func TestBuildBreakerOpenMessage_NoDashboardURL(t *testing.T) {
	blocks := BuildBreakerOpenMessage("vector-store", 5, "")
	require.Len(t, blocks, 1)
}

func TestBuildRunFailedMessage(t *testing.T) {
	blocks := BuildRunFailedMessage("run-1", "user-1", "all chunks failed", "https://grantfinder.example.com")

	require.Len(t, blocks, 2)
	section := blocks[0].(*goslack.SectionBlock)
	assert.Contains(t, section.Text.Text, "run-1")
	assert.Contains(t, section.Text.Text, "user-1")
	assert.Contains(t, section.Text.Text, "all chunks failed")

	action := blocks[1].(*goslack.ActionBlock)
	btn := action.Elements.ElementSet[0].(*goslack.ButtonBlockElement)
	assert.Contains(t, btn.URL, "/runs/run-1")
}

func TestTruncateForSlack(t *testing.T) {
	t.Run("short text unchanged", func(t *testing.T) {
		assert.Equal(t, "hello", truncateForSlack("hello"))
	})

	t.Run("exact limit unchanged", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength)
		assert.Equal(t, text, truncateForSlack(text))
	})

	t.Run("over limit truncated", func(t *testing.T) {
		text := strings.Repeat("a", maxBlockTextLength+100)
		result := truncateForSlack(text)
		assert.True(t, len(result) < len(text))
		assert.Contains(t, result, "truncated")
	})

	t.Run("multi-byte runes not split", func(t *testing.T) {
		text := strings.Repeat("🔥", maxBlockTextLength+10)
		result := truncateForSlack(text)
		assert.Contains(t, result, "truncated")
		assert.True(t, utf8.ValidString(result), "result should be valid UTF-8")
		prefix := strings.Split(result, "\n\n_...")[0]
		assert.Equal(t, maxBlockTextLength, utf8.RuneCountInString(prefix))
	})
}
