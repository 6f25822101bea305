package utils

import (
	"fmt"
	"os"

	"prdash/internal/configutils"
	"prdash/internal/errcodes"
	"prdash/internal/logging"
	"prdash/internal/systemcodes"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Env is filled by the root command before any subcommand runs.
type Env struct {
	Config   *viper.Viper
	Settings *configutils.Settings
	Logger   zerolog.Logger
}

var getWorkingDir = os.Getwd

var setupLogging = logging.Setup

// Load reads the configuration for the working directory and sets up logging.
func (e *Env) Load(flags configutils.FlagSet) error {
	wd, err := getWorkingDir()
	if err != nil {
		return err
	}

	v, err := configutils.LoadConfigForPath(
		wd,
		configutils.GetStringFlagOrDefault(flags, "config", ""),
	)
	if err != nil {
		return err
	}

	if lvl := configutils.GetStringFlagOrDefault(flags, "log-level", ""); lvl != "" {
		v.Set(configutils.KeyLogLevel, lvl)
	}

	settings := configutils.ReadSettings(v)
	logger, err := setupLogging(logging.Options{
		Level: settings.Log.Level,
		File:  settings.Log.File,
	})
	if err != nil {
		return err
	}

	e.Config = v
	e.Settings = settings
	e.Logger = logger

	return nil
}

const authHint = "check github.token and github.owner, or run `prdash init`"

// ExitCode maps command errors to process exit codes.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errcodes.ErrInvalidTokenOrUser):
		return systemcodes.ErrorCodeAuth
	case errors.Is(err, errcodes.ErrMissingToken),
		errors.Is(err, errcodes.ErrMissingOwner),
		errors.Is(err, errcodes.ErrInvalidSetting):
		return systemcodes.ErrorCodeConfig
	default:
		return systemcodes.ErrorCodeGeneric
	}
}

var exit = os.Exit

type runCommandError func(*cobra.Command, []string) error
type runCommandNoError func(*cobra.Command, []string)

func RunCommandWrapper(fn runCommandError) runCommandNoError {
	return func(cmd *cobra.Command, args []string) {
		err := fn(cmd, args)
		if err == nil {
			return
		}

		fmt.Fprintln(cmd.ErrOrStderr(), err)
		code := ExitCode(err)
		if code == systemcodes.ErrorCodeAuth || code == systemcodes.ErrorCodeConfig {
			fmt.Fprintln(cmd.ErrOrStderr(), authHint)
		}

		exit(code)
	}
}
