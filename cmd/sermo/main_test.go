package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sermohq/sermo/internal/cli"
)

func TestShouldPrintUsageHint(t *testing.T) {
	t.Parallel()

	require.True(t, shouldPrintUsageHint(errors.New("unknown command \"bad\" for \"sermo\"")))
	require.True(t, shouldPrintUsageHint(errors.New("unknown flag: --bogus")))
	require.True(t, shouldPrintUsageHint(errors.New("accepts 1 arg(s), received 0")))
	require.False(t, shouldPrintUsageHint(errors.New("transcription failed")))
	require.False(t, shouldPrintUsageHint(nil))
}

func TestHelpHintTarget(t *testing.T) {
	t.Parallel()

	root := cli.NewRootCmd()

	require.Equal(t, "sermo", helpHintTarget(root, nil))
	require.Equal(t, "sermo", helpHintTarget(root, []string{"--badflag"}))
	require.Equal(t, "sermo", helpHintTarget(root, []string{"badcmd"}))
	require.Equal(t, "sermo transcribe", helpHintTarget(root, []string{"transcribe"}))
	require.Equal(t, "sermo transcribe", helpHintTarget(root, []string{"transcribe", "--server"}))
	require.Equal(t, "sermo", helpHintTarget(nil, []string{"transcribe"}))
}
