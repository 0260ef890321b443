package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI with a file store rooted in dir.
func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DISPENSER_STORE", "file")
	t.Setenv("DISPENSER_DIR", dir)
	t.Setenv("DISPENSER_LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemo(t *testing.T) {
	out, err := execute(t, t.TempDir(), "demo")
	require.NoError(t, err)

	want := []string{
		"Restocked with 5 units.",
		"Payment accepted.",
		"Dispensing...",
		"Unit released.",
		"Dispensed",
		"No payment to refund.",
		"Insert payment first.",
		"Rejected(no_payment)",
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.GreaterOrEqual(t, len(lines), len(want))
	assert.Equal(t, want, lines[:len(want)])

	assert.Equal(t, 5, strings.Count(out, "Unit released."), "every unit is released")
	assert.Contains(t, out, "Out of stock, cannot accept payment.")
	assert.Contains(t, out, "Rejected(out_of_stock)")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "State: SoldOut | Inventory: 0"))
}

func TestMachineWorkflow(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "machine", "create", "lobby", "--stock", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Created machine 'lobby'")
	assert.Contains(t, out, "State: NoPayment | Inventory: 1")

	out, err = execute(t, dir, "insert", "lobby")
	require.NoError(t, err)
	assert.Contains(t, out, "Payment accepted.")

	out, err = execute(t, dir, "activate", "lobby")
	require.NoError(t, err)
	assert.Contains(t, out, "Dispensed")
	assert.Contains(t, out, "State: SoldOut | Inventory: 0")

	out, err = execute(t, dir, "activate", "lobby")
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected(out_of_stock)")

	out, err = execute(t, dir, "refill", "lobby", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "State: NoPayment | Inventory: 3")

	out, err = execute(t, dir, "machine", "inspect", "lobby")
	require.NoError(t, err)
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	assert.Equal(t, 3, snap.Inventory)

	out, err = execute(t, dir, "machine", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "- lobby")

	_, err = execute(t, dir, "machine", "rm", "lobby")
	require.NoError(t, err)

	out, err = execute(t, dir, "machine", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No machines found.")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "activate", "ghost")
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)

	_, err = execute(t, dir, "machine", "create", "m")
	require.NoError(t, err)

	_, err = execute(t, dir, "refill", "m", "--", "-1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = execute(t, dir, "refill", "m", "lots")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = execute(t, dir, "--store", "etcd", "machine", "ls")
	assert.ErrorContains(t, err, "unknown store")
}

func TestSQLiteStoreFlag(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, dir, "--store", "sqlite", "machine", "create", "m", "--stock", "2")
	require.NoError(t, err)

	out, err := execute(t, dir, "--store", "sqlite", "insert", "m")
	require.NoError(t, err)
	assert.Contains(t, out, "State: HasPayment | Inventory: 2")
}

func TestGraphAndVersion(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, dir, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "stateDiagram-v2")

	_, err = execute(t, dir, "machine", "create", "m", "--stock", "1")
	require.NoError(t, err)
	out, err = execute(t, dir, "graph", "--machine", "m")
	require.NoError(t, err)
	assert.Contains(t, out, "class NoPayment current")

	out, err = execute(t, dir, "graph", "--table", "--raw")
	require.NoError(t, err)
	assert.Contains(t, out, "| SoldOut | no-op | no-op | Rejected(out_of_stock) |")

	out, err = execute(t, dir, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dispenser version")
}

func TestRunHeadless(t *testing.T) {
	t.Setenv("DISPENSER_LOG_LEVEL", "error")
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("insert\ncrank\nstatus\nquit\n"))
	cmd.SetArgs([]string{"run", "--headless", "--stock", "1"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "Payment accepted.\nDispensing...\nUnit released.\nState: SoldOut | Inventory: 0\nBye!\n", out.String())
}
