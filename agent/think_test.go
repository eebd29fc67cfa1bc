package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripThinkTags(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"no tags", "  plain answer ", "  plain answer "},
		{"empty", "", ""},
		{"single", "<think>x</think>y", "y"},
		{"whitespace trimmed", "<think>\nreasoning\n</think>\n\nanswer\n", "answer"},
		{"two closing tags", "<think>a</think>b</think>c", "b</think>c"},
		{"opening only", "<think>unterminated", "<think>unterminated"},
		{"closing only", "stray</think> tail", "tail"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, StripThinkTags(tc.in))
		})
	}
}
