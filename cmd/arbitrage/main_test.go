package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	return executeIn(t, filepath.Join(t.TempDir(), "history.db"), args...)
}

// executeIn runs one command against the database at dbPath, as a separate invocation would.
func executeIn(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	t.Setenv("ARB_HISTORY_PATH", dbPath)

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()))
	return out.String()
}

func TestVersion(t *testing.T) {
	out := execute(t, "version")
	assert.Contains(t, out, "pair-arbitrage dev")
}

func TestCalculate(t *testing.T) {
	out := execute(t, "calculate", "--amount", "1000")
	assert.Contains(t, out, "A->B")
	assert.Contains(t, out, "B->A")
	assert.Contains(t, out, "best: A_FIRST (pool A, then pool B), profit 796.752860 TKA")
}

func TestPerform(t *testing.T) {
	out := execute(t, "perform", "--amount", "1000")
	assert.Contains(t, out, "profit:  796.752860 TKA")
	assert.Contains(t, out, "SETTLED")
	assert.Contains(t, out, "deployer")
}

func TestHistoryCountsNothingOnFreshStore(t *testing.T) {
	out := execute(t, "history")
	assert.Contains(t, out, "0 executions, 0 settled, 0 rolled back")
}

func line(out, prefix string) string {
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, prefix) {
			return l
		}
	}
	return ""
}

func TestStateCarriesAcrossInvocations(t *testing.T) {
	engine := "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9"

	t.Run("transfer", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "history.db")
		executeIn(t, db, "transfer", "--to", engine, "--amount", "250")

		out := executeIn(t, db, "balances")
		assert.Contains(t, line(out, "engine"), "250.000000 TKA")
	})

	t.Run("fund", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "history.db")
		executeIn(t, db, "fund")

		out := executeIn(t, db, "balances")
		assert.Contains(t, line(out, "exchange-a"), "2000.000000 TKA")
		assert.Contains(t, line(out, "exchange-b"), "2000.000000 TKB")
	})

	t.Run("perform", func(t *testing.T) {
		db := filepath.Join(t.TempDir(), "history.db")
		executeIn(t, db, "perform", "--amount", "1000")

		out := executeIn(t, db, "calculate", "--amount", "1000")
		assert.NotContains(t, out, "796.752860")
		assert.Contains(t, executeIn(t, db, "history"), "1 executions, 1 settled")
	})
}

func TestStateIsNotKeptWhenPersistenceIsOff(t *testing.T) {
	t.Setenv("ARB_PERSIST", "false")
	db := filepath.Join(t.TempDir(), "history.db")
	executeIn(t, db, "transfer", "--to", "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9", "--amount", "250")

	out := executeIn(t, db, "balances")
	assert.NotContains(t, line(out, "engine"), "250.000000 TKA")
}
