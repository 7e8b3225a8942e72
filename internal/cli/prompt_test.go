package cli

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
)

func TestConfirm(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  PromptResult
	}{
		{name: "y", input: "y\n", want: PromptResult{Accepted: true}},
		{name: "YES with spaces", input: "  YES \n", want: PromptResult{Accepted: true}},
		{name: "no", input: "no\n", want: PromptResult{}},
		{name: "enter", input: "\n", want: PromptResult{}},
		{name: "eof", input: "", want: PromptResult{}},
		{name: "other", input: "sure\n", want: PromptResult{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got := Confirm(&out, strings.NewReader(tt.input), "Proceed?")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "? Proceed? [y/N] ", out.String())
		})
	}
}

func TestConfirm_ReadError(t *testing.T) {
	var out bytes.Buffer
	got := Confirm(&out, iotest.ErrReader(errors.New("closed")), "Proceed?")
	assert.True(t, got.Cancelled)
	assert.False(t, got.Accepted)
}
