package utils

import (
	"bytes"
	"testing"

	"prdash/internal/configutils"
	"prdash/internal/errcodes"
	"prdash/internal/logging"
	"prdash/internal/systemcodes"
	"prdash/mocks"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no error", nil, 0},
		{"invalid identity", errors.Wrap(errcodes.ErrInvalidTokenOrUser, "404"), systemcodes.ErrorCodeAuth},
		{"missing token", errcodes.ErrMissingToken, systemcodes.ErrorCodeConfig},
		{"missing owner", errcodes.ErrMissingOwner, systemcodes.ErrorCodeConfig},
		{"invalid setting", errors.Wrap(errcodes.ErrInvalidSetting, "loader.concurrency"), systemcodes.ErrorCodeConfig},
		{"anything else", errors.New("boom"), systemcodes.ErrorCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func Test_RunCommandWrapper(t *testing.T) {
	oldExit := exit
	defer func() { exit = oldExit }()

	t.Run("does not exit on success", func(t *testing.T) {
		code := -1
		exit = func(c int) { code = c }

		RunCommandWrapper(func(*cobra.Command, []string) error { return nil })(&cobra.Command{}, nil)

		assert.Equal(t, -1, code)
	})

	t.Run("prints the error and exits with its code", func(t *testing.T) {
		code := -1
		exit = func(c int) { code = c }
		out := &bytes.Buffer{}
		cmd := &cobra.Command{}
		cmd.SetErr(out)

		RunCommandWrapper(func(*cobra.Command, []string) error {
			return errcodes.ErrMissingToken
		})(cmd, nil)

		assert.Equal(t, systemcodes.ErrorCodeConfig, code)
		assert.Contains(t, out.String(), errcodes.ErrMissingToken.Error())
		assert.Contains(t, out.String(), "prdash init")
	})
}

func Test_Env_Load(t *testing.T) {
	oldWd, oldSetup := getWorkingDir, setupLogging
	defer func() { getWorkingDir, setupLogging = oldWd, oldSetup }()

	dir := t.TempDir()
	getWorkingDir = func() (string, error) { return dir, nil }

	var got logging.Options
	setupLogging = func(o logging.Options) (zerolog.Logger, error) {
		got = o
		return zerolog.Nop(), nil
	}

	t.Run("reads defaults and applies the log level flag", func(t *testing.T) {
		t.Setenv("PRDASH_GITHUB_OWNER", "acme")
		env := &Env{}

		err := env.Load(&mocks.FlagSet{Values: map[string]interface{}{
			"config":    "",
			"log-level": "debug",
		}})

		require.NoError(t, err)
		assert.Equal(t, "debug", got.Level)
		assert.Equal(t, "acme", env.Settings.GitHub.Owner)
		assert.Equal(t, 3, env.Settings.Loader.Concurrency)
		assert.Equal(t, "debug", env.Config.GetString(configutils.KeyLogLevel))
	})

	t.Run("fails on a missing override file", func(t *testing.T) {
		env := &Env{}

		err := env.Load(&mocks.FlagSet{Values: map[string]interface{}{
			"config": dir + "/nope.yaml",
		}})

		assert.Error(t, err)
		assert.Nil(t, env.Settings)
	})

	t.Run("fails on logging errors", func(t *testing.T) {
		setupLogging = func(o logging.Options) (zerolog.Logger, error) {
			return zerolog.Nop(), errcodes.ErrInvalidSetting
		}
		env := &Env{}

		err := env.Load(&mocks.FlagSet{})

		assert.ErrorIs(t, err, errcodes.ErrInvalidSetting)
	})
}
