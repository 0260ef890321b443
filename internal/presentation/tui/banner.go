package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the dispenser banner, colored for the terminal behind w.
func PrintBanner(w io.Writer) {
	p := termenv.NewOutput(w).ColorProfile()
	lines := []struct {
		text  string
		color string
	}{
		{"      _ _                                    ", "#34d399"},
		{"   __| (_)___ _ __   ___ _ __  ___  ___ _ __ ", "#2dd4bf"},
		{"  / _` | / __| '_ \\ / _ \\ '_ \\/ __|/ _ \\ '__|", "#22d3ee"},
		{" | (_| | \\__ \\ |_) |  __/ | | \\__ \\  __/ |   ", "#38bdf8"},
		{"  \\__,_|_|___/ .__/ \\___|_| |_|___/\\___|_|   ", "#60a5fa"},
		{"             |_|                             ", "#818cf8"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
