package dispenser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
)

// Runner drives a Machine from line-oriented input (a console, a script, a test).
// Each line is a command: insert, cancel, crank, refill <n>, status, help, quit.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool // No banner, no prompt
	Echo     bool // Repeat each command (useful for scripted input)
	Styler   StateStyler
}

// StateStyler decorates a state name for display (e.g. terminal colors).
type StateStyler func(domain.State) string

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

const runnerHelp = `Commands:
  insert        insert a payment
  cancel        refund the payment
  crank         activate the machine
  refill <n>    restock with n units
  status        show state and inventory
  quit          leave`

// Run reads commands until EOF or quit.
func (r *Runner) Run(ctx context.Context, m *Machine) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lineReader := bufio.NewReader(r.Input)
	w := r.Output

	if !r.Headless {
		fmt.Fprintln(w, "--- Dispenser (type 'help') ---")
		r.printStatus(m)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			fmt.Fprint(w, "> ")
		}

		text, err := lineReader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return fmt.Errorf("input error: %w", err)
			}
			// Graceful exit on EOF; a final line without newline still runs.
			if strings.TrimSpace(text) == "" {
				return nil
			}
		}

		line := strings.TrimSpace(text)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if r.Echo {
			fmt.Fprintln(w, "> "+line)
		}

		quit, cmdErr := r.exec(ctx, m, line)
		if cmdErr != nil {
			if errors.Is(cmdErr, domain.ErrInternalInconsistency) {
				return cmdErr
			}
			fmt.Fprintf(w, "Error: %v\n", cmdErr)
		}
		if quit {
			fmt.Fprintln(w, "Bye!")
			return nil
		}
	}
}

func (r *Runner) exec(ctx context.Context, m *Machine, line string) (bool, error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])

	switch cmd {
	case "quit", "exit":
		return true, nil
	case "help", "?":
		fmt.Fprintln(r.Output, runnerHelp)
		return false, nil
	case "status":
		r.printStatus(m)
		return false, nil
	case "refill":
		if len(fields) != 2 {
			return false, fmt.Errorf("usage: refill <n>")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return false, fmt.Errorf("%w: %q is not a number", domain.ErrInvalidArgument, fields[1])
		}
		if err := m.Refill(ctx, n); err != nil {
			return false, err
		}
		fmt.Fprintln(r.Output, runtime.RefillNotice(n).Message)
		return false, nil
	}

	trigger, err := domain.ParseTrigger(cmd)
	if err != nil {
		return false, err
	}
	out, err := m.Fire(ctx, trigger)
	if err != nil {
		return false, err
	}
	for _, n := range out.Notices {
		fmt.Fprintln(r.Output, n.Message)
	}
	if out.Result != nil && !out.Result.Dispensed {
		fmt.Fprintln(r.Output, out.Result.String())
	}
	return false, nil
}

func (r *Runner) printStatus(m *Machine) {
	state := m.CurrentState().Label()
	if r.Styler != nil {
		state = r.Styler(m.CurrentState())
	}
	fmt.Fprintf(r.Output, "State: %s | Inventory: %d\n", state, m.InventoryCount())
}
