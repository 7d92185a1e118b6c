package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// Either variable set to a true value keeps the binaries from connecting to
// anything when they are started by package tests.
var testModeEnvs = []string{"LEDGER_TEST_MODE", "ODYSSEY_TEST_MODE"}

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	on := false
	for _, key := range testModeEnvs {
		switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
		case "1", "true", "yes":
			on = true
		}
	}
	testModeFlag.Store(on)
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
