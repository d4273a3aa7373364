package commands_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codegraph-dev/codegraph/cmd/codegraph/commands"
)

func TestNewIndexCommandRequiresExactlyOnePath(t *testing.T) {
	t.Parallel()

	cmd := commands.NewIndexCommand()

	assert.Equal(t, "index [path]", cmd.Use)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.Error(t, cmd.Args(cmd, []string{"a", "b"}))
	assert.NoError(t, cmd.Args(cmd, []string{"a"}))
}

func TestNewWatchCommandRequiresExactlyOnePath(t *testing.T) {
	t.Parallel()

	cmd := commands.NewWatchCommand()

	assert.Equal(t, "watch [path]", cmd.Use)
	assert.Error(t, cmd.Args(cmd, nil))
	assert.NoError(t, cmd.Args(cmd, []string{"."}))
}
