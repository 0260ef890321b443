package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/dispenser/internal/presentation/graph"
	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(runtime.Table(), nil)

	assert.True(t, strings.HasPrefix(out, "stateDiagram-v2\n"))
	for _, want := range []string{
		"[*] --> SoldOut",
		"NoPayment --> HasPayment : insert_payment",
		"HasPayment --> NoPayment : cancel_payment",
		"HasPayment --> Dispensing : activate",
		"Dispensing --> NoPayment : units left",
		"Dispensing --> SoldOut : last unit",
		"SoldOut --> NoPayment : refill(n > 0)",
		"NoPayment --> SoldOut : refill(0)",
		"HasPayment --> NoPayment : refill(n > 0)",
		"HasPayment --> SoldOut : refill(0)",
	} {
		assert.Contains(t, out, want)
	}

	assert.Equal(t, 4, strings.Count(out, ": refill("), "one edge per settled state and target")
	assert.NotContains(t, out, "Dispensing --> NoPayment : refill", "dispensing is never restocked")
	assert.NotContains(t, out, "SoldOut --> SoldOut", "self-loops are omitted")
	assert.NotContains(t, out, "NoPayment --> NoPayment", "self-loops are omitted")
	assert.NotContains(t, out, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(runtime.Table(), &graph.Overlay{Current: domain.StateHasPayment})
	assert.Contains(t, out, "classDef current")
	assert.Contains(t, out, "class HasPayment current")

	out = graph.GenerateMermaid(runtime.Table(), &graph.Overlay{Current: domain.State("bogus")})
	assert.NotContains(t, out, "class ")
}

func TestGenerateTable(t *testing.T) {
	out := graph.GenerateTable(runtime.Table())
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.Len(t, lines, 2+len(domain.States))
	assert.Equal(t, "| State | InsertPayment | CancelPayment | Activate |", lines[0])
	assert.Equal(t, "| NoPayment | → HasPayment | no-op | Rejected(no_payment) |", lines[2])
	assert.Equal(t, "| HasPayment | no-op | → NoPayment | dispense → NoPayment or SoldOut |", lines[3])
	assert.Equal(t, "| Dispensing | no-op | no-op | Rejected(already_dispensing) |", lines[4])
	assert.Equal(t, "| SoldOut | no-op | no-op | Rejected(out_of_stock) |", lines[5])
}
