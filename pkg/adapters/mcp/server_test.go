package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/dispenser/pkg/adapters/memory"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/aretw0/dispenser/pkg/fleet"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	mgr := fleet.NewManager(memory.NewStore())
	_, err := mgr.Create(context.Background(), "m", 1)
	require.NoError(t, err)
	return NewServer(mgr)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestTriggerTools(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	args := MachineArgs{MachineID: "m"}

	resp, err := s.triggerHandler(domain.TriggerInsertPayment)(ctx, mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.Equal(t, domain.StateHasPayment, resp.Machine.State)

	resp, err = s.triggerHandler(domain.TriggerActivate)(ctx, mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	require.NotNil(t, resp.Outcome.Result)
	assert.True(t, resp.Outcome.Result.Dispensed)
	assert.Equal(t, domain.StateSoldOut, resp.Machine.State)

	resp, err = s.triggerHandler(domain.TriggerActivate)(ctx, mcp.CallToolRequest{}, args)
	require.NoError(t, err)
	assert.Equal(t, domain.Rejected(domain.RejectOutOfStock), *resp.Outcome.Result)

	_, err = s.triggerHandler(domain.TriggerCancelPayment)(ctx, mcp.CallToolRequest{}, MachineArgs{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = s.triggerHandler(domain.TriggerCancelPayment)(ctx, mcp.CallToolRequest{}, MachineArgs{MachineID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrMachineNotFound)
}

func TestRefillAndStatus(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	resp, err := s.handleRefill(ctx, mcp.CallToolRequest{}, RefillArgs{MachineID: "m", Count: 9})
	require.NoError(t, err)
	assert.Equal(t, 9, resp.Machine.Inventory)

	_, err = s.handleRefill(ctx, mcp.CallToolRequest{}, RefillArgs{MachineID: "m", Count: -2})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	status, err := s.handleStatus(ctx, mcp.CallToolRequest{}, MachineArgs{MachineID: "m"})
	require.NoError(t, err)
	assert.Equal(t, 9, status.Machine.Inventory)
	assert.Equal(t, domain.StateNoPayment, status.Machine.State)
}

func TestListAndGraph(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	res, err := s.handleList(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.JSONEq(t, `["m"]`, resultText(t, res))

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"machine_id": "m"}
	res, err = s.handleGraph(ctx, req)
	require.NoError(t, err)
	assert.Contains(t, resultText(t, res), "class NoPayment current")

	req.Params.Arguments = map[string]any{"machine_id": "ghost"}
	res, err = s.handleGraph(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
