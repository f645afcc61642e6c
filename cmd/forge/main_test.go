package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepsFlag(t *testing.T) {
	parse := func(t *testing.T, args ...string) (*int, error) {
		t.Helper()

		f := &flags{}
		cmd := &cobra.Command{Use: "migrate"}
		cmd.Flags().IntVar(&f.steps, "step", 0, "")
		require.NoError(t, cmd.Flags().Parse(args))

		return stepsFlag(cmd, f)
	}

	t.Run("absent flag means no limit", func(t *testing.T) {
		steps, err := parse(t)
		require.NoError(t, err)
		assert.Nil(t, steps)
	})

	t.Run("explicit zero is kept", func(t *testing.T) {
		steps, err := parse(t, "--step=0")
		require.NoError(t, err)
		require.NotNil(t, steps)
		assert.Equal(t, 0, *steps)
	})

	t.Run("positive", func(t *testing.T) {
		steps, err := parse(t, "--step=2")
		require.NoError(t, err)
		require.NotNil(t, steps)
		assert.Equal(t, 2, *steps)
	})

	t.Run("negative is rejected", func(t *testing.T) {
		_, err := parse(t, "--step=-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be negative")
	})
}

func TestRollbackCmd_RejectsNegativeStep(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"migrate:rollback", "--step=-3"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --step -3")
}
