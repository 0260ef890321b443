package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
)

// Overlay contains dynamic machine data to visualize on the diagram.
type Overlay struct {
	Current domain.State
}

// GenerateMermaid produces a Mermaid stateDiagram-v2 from the transition rules.
// Self-loops (notices that leave the state unchanged) are omitted; the
// compound dispense path is drawn through Dispensing with its two exits.
// Refill edges are drawn from every settled state (Dispensing never is one).
func GenerateMermaid(rules []runtime.Rule, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("stateDiagram-v2\n")
	sb.WriteString(fmt.Sprintf("    [*] --> %s\n", domain.StateSoldOut.Label()))

	for _, r := range rules {
		if r.From == r.To {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s : %s\n", r.From.Label(), r.To.Label(), r.Trigger))
		if r.Dispense {
			sb.WriteString(fmt.Sprintf("    %s --> %s : units left\n", r.To.Label(), domain.StateNoPayment.Label()))
			sb.WriteString(fmt.Sprintf("    %s --> %s : last unit\n", r.To.Label(), domain.StateSoldOut.Label()))
		}
	}

	for _, from := range domain.States {
		if from == domain.StateDispensing {
			continue
		}
		for _, edge := range []struct {
			n     int
			label string
		}{{1, "refill(n > 0)"}, {0, "refill(0)"}} {
			if to := runtime.RefillTarget(edge.n); to != from {
				sb.WriteString(fmt.Sprintf("    %s --> %s : %s\n", from.Label(), to.Label(), edge.label))
			}
		}
	}

	if overlay != nil && overlay.Current.Valid() {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast on both light and dark themes.
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000\n")
		sb.WriteString(fmt.Sprintf("    class %s current\n", overlay.Current.Label()))
	}

	return sb.String()
}

// GenerateTable renders the rules as a markdown table, one row per state.
func GenerateTable(rules []runtime.Rule) string {
	cells := make(map[domain.State]map[domain.Trigger]string, len(domain.States))
	for _, r := range rules {
		if cells[r.From] == nil {
			cells[r.From] = make(map[domain.Trigger]string, len(domain.Triggers))
		}
		cells[r.From][r.Trigger] = describe(r)
	}

	var sb strings.Builder
	sb.WriteString("| State |")
	for _, t := range domain.Triggers {
		sb.WriteString(" " + t.Label() + " |")
	}
	sb.WriteString("\n|---|")
	for range domain.Triggers {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")

	for _, s := range domain.States {
		sb.WriteString("| " + s.Label() + " |")
		for _, t := range domain.Triggers {
			sb.WriteString(" " + cells[s][t] + " |")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func describe(r runtime.Rule) string {
	switch {
	case r.Reject != "":
		return domain.Rejected(r.Reject).String()
	case r.Dispense:
		return fmt.Sprintf("dispense → %s or %s", domain.StateNoPayment.Label(), domain.StateSoldOut.Label())
	case r.From != r.To:
		return "→ " + r.To.Label()
	default:
		return "no-op"
	}
}
