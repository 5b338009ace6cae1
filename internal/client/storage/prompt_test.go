package storage

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPromptField(t *testing.T) {
	cases := []struct {
		name, input, current, want string
	}{
		{"new value", "feeling great\n", "", "feeling great"},
		{"keep current", "\n", "test", "test"},
		{"clear", "-\n", "test", ""},
		{"no trailing newline", "test2", "test", "test2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := PromptField(bufio.NewReader(strings.NewReader(tc.input)), &out, "Note", tc.current)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.True(t, strings.HasPrefix(out.String(), "Note"))
		})
	}
}

func TestPromptField_EOF(t *testing.T) {
	got, err := PromptField(bufio.NewReader(strings.NewReader("")), io.Discard, "Emoji", "🔥")
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "🔥", got)
}

func TestPromptYesNo(t *testing.T) {
	var out bytes.Buffer
	got, err := PromptYesNo(bufio.NewReader(strings.NewReader("n\n")), &out, "Share", true)
	require.NoError(t, err)
	assert.False(t, got)
	assert.Contains(t, out.String(), "[Y/n]")

	got, err = PromptYesNo(bufio.NewReader(strings.NewReader("\n")), io.Discard, "Share", true)
	require.NoError(t, err)
	assert.True(t, got)
}
