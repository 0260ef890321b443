package tui

import (
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/muesli/termenv"
)

var stateColors = map[domain.State]string{
	domain.StateNoPayment:  "#22c55e",
	domain.StateHasPayment: "#eab308",
	domain.StateDispensing: "#06b6d4",
	domain.StateSoldOut:    "#ef4444",
}

// NewStateStyler returns a function that renders a state label in its color.
// Under the Ascii profile (pipes, NO_COLOR) labels are returned unstyled.
func NewStateStyler(p termenv.Profile) func(domain.State) string {
	return func(s domain.State) string {
		color, ok := stateColors[s]
		if !ok || p == termenv.Ascii {
			return s.Label()
		}
		return termenv.String(s.Label()).Foreground(p.Color(color)).Bold().String()
	}
}
