package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/guildsweep/internal/cli"
	"github.com/rshade/guildsweep/pkg/version"
)

func TestMainComponents(t *testing.T) {
	t.Run("version available", func(t *testing.T) {
		assert.NotEmpty(t, version.GetVersion())
	})

	t.Run("cli root command", func(t *testing.T) {
		root := cli.NewRootCmd(version.GetVersion())
		require.NotNil(t, root)
		assert.Equal(t, "guildsweep", root.Use)

		cleanup, _, err := root.Find([]string{"cleanup", "unconfirmed"})
		require.NoError(t, err)
		assert.Equal(t, "unconfirmed", cleanup.Name())
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil error returns 0", err: nil, want: cli.ExitOK},
		{name: "generic error", err: errors.New("generic error"), want: cli.ExitFailure},
		{
			name: "precondition",
			err:  &cli.ExitError{Code: cli.ExitPrecondition, Err: errors.New("no role"), Silent: true},
			want: cli.ExitPrecondition,
		},
		{
			name: "wrapped exit error",
			err:  fmt.Errorf("outer: %w", &cli.ExitError{Code: cli.ExitPrecondition}),
			want: cli.ExitPrecondition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
