package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInTestModeFollowsEnvironment(t *testing.T) {
	t.Setenv("ODYSSEY_TEST_MODE", "")
	t.Setenv("LEDGER_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())

	t.Setenv("LEDGER_TEST_MODE", "true")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("LEDGER_TEST_MODE", "no")
	t.Setenv("ODYSSEY_TEST_MODE", "1")
	RefreshTestMode()
	require.True(t, InTestMode())

	t.Setenv("ODYSSEY_TEST_MODE", "")
	RefreshTestMode()
	require.False(t, InTestMode())
}
