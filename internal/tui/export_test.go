package tui

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Zacy-Sokach/ThinkChat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTurns() []protocol.ChatTurn {
	idx := len("let me think\nabout it")
	return []protocol.ChatTurn{
		protocol.UserTurn("why is the sky blue?"),
		{Role: protocol.RoleAssistant, Content: "let me think\nabout itRayleigh scattering.", AnswerIndex: &idx},
	}
}

func TestExportMarkdown(t *testing.T) {
	out := ExportMarkdown("qwen3", sampleTurns())

	want := "# ThinkChat · qwen3\n\n" +
		"## 用户\n\nwhy is the sky blue?\n\n" +
		"## 助手\n\n> let me think\n> about it\n\nRayleigh scattering.\n"
	assert.Equal(t, want, out)
}

func TestExportMarkdownUnansweredTurn(t *testing.T) {
	turns := []protocol.ChatTurn{
		protocol.UserTurn("q"),
		{Role: protocol.RoleAssistant, Content: "still thinking"},
	}
	out := ExportMarkdown("", turns)

	assert.Contains(t, out, "> still thinking\n")
	assert.True(t, len(out) > 0 && out[len(out)-1] == '\n')
}

func TestExportTranscriptWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "chat.md")

	got, err := exportTranscript(path, "qwen3", sampleTurns())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Rayleigh scattering.")
}

func TestExportTranscriptEmpty(t *testing.T) {
	_, err := exportTranscript(filepath.Join(t.TempDir(), "x.md"), "m", nil)
	assert.Error(t, err)
}
