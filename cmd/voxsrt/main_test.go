package main

import (
	"errors"
	"testing"

	"github.com/fmueller/voxsrt/internal/cli"
	"github.com/stretchr/testify/require"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"voxsrt\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --oops")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("download model \"tiny\": context deadline exceeded")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()
	require.Equal(t, "voxsrt", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "voxsrt", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "voxsrt transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "voxsrt transcribe", helpHintTarget(root, []string{"transcribe", "--output"}))
}
