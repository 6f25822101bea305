package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_newRootCmd(t *testing.T) {
	t.Run("registers every command", func(t *testing.T) {
		cmd := newRootCmd()

		names := []string{}
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}

		assert.ElementsMatch(t, []string{"serve", "list", "replay", "init"}, names)
	})

	t.Run("prints the version", func(t *testing.T) {
		cmd := newRootCmd()
		out := &bytes.Buffer{}
		cmd.SetOut(out)
		cmd.SetArgs([]string{"--version"})

		require.NoError(t, cmd.Execute())
		assert.Contains(t, out.String(), "dev, commit none")
	})

	t.Run("rejects unknown log levels before running a command", func(t *testing.T) {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"replay", "--log-level", "loud", "event.json"})

		assert.Error(t, cmd.Execute())
	})
}
