package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/dispenser"
	"github.com/aretw0/dispenser/internal/logging"
	"github.com/aretw0/dispenser/internal/presentation/graph"
	"github.com/aretw0/dispenser/internal/runtime"
	"github.com/aretw0/dispenser/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Fleet is the subset of fleet.Manager exposed as tools.
type Fleet interface {
	Get(ctx context.Context, machineID string) (*domain.Snapshot, error)
	List(ctx context.Context) ([]string, error)
	Fire(ctx context.Context, machineID string, trigger domain.Trigger) (domain.Outcome, *domain.Snapshot, error)
	Refill(ctx context.Context, machineID string, n int) (*domain.Snapshot, error)
}

// MachineArgs selects the machine a tool acts on.
type MachineArgs struct {
	MachineID string `json:"machine_id"`
}

// RefillArgs is the input of the refill tool.
type RefillArgs struct {
	MachineID string `json:"machine_id"`
	Count     int    `json:"count"`
}

// TriggerResponse is the structured result of the trigger tools.
type TriggerResponse struct {
	Outcome domain.Outcome   `json:"outcome" jsonschema_description:"What the trigger did: transitions, notices and, for activate, the dispense result"`
	Machine *domain.Snapshot `json:"machine" jsonschema_description:"The machine after the trigger settled"`
}

// StatusResponse is the structured result of machine_status and refill.
type StatusResponse struct {
	Machine *domain.Snapshot `json:"machine" jsonschema_description:"Current machine snapshot"`
}

// Server wraps a fleet and exposes it as an MCP Server.
type Server struct {
	fleet     Fleet
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger for tool failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(fleet Fleet, opts ...Option) *Server {
	s := &Server{
		fleet:     fleet,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("dispenser-mcp", strings.TrimSpace(dispenser.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves the MCP SSE transport on port until ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	triggers := []struct {
		name    string
		trigger domain.Trigger
		desc    string
	}{
		{"insert_payment", domain.TriggerInsertPayment, "Insert one payment credit. Ignored (with a notice) when a payment is already held or the machine is sold out."},
		{"cancel_payment", domain.TriggerCancelPayment, "Refund the held payment, if any."},
		{"activate", domain.TriggerActivate, "Turn the crank. Dispenses one unit when a payment is held; otherwise the result is Rejected with a reason."},
	}
	for _, t := range triggers {
		tool := mcp.NewTool(t.name,
			mcp.WithDescription(t.desc),
			mcp.WithString("machine_id", mcp.Required(), mcp.Description("ID of the machine")),
			mcp.WithOutputSchema[TriggerResponse](),
		)
		s.mcpServer.AddTool(tool, mcp.NewStructuredToolHandler(s.triggerHandler(t.trigger)))
	}

	refillTool := mcp.NewTool("refill",
		mcp.WithDescription("Restock the machine with exactly count units. Resets the state to NoPayment, or SoldOut when count is 0."),
		mcp.WithString("machine_id", mcp.Required(), mcp.Description("ID of the machine")),
		mcp.WithNumber("count", mcp.Required(), mcp.Description("New inventory, must be >= 0")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(refillTool, mcp.NewStructuredToolHandler(s.handleRefill))

	statusTool := mcp.NewTool("machine_status",
		mcp.WithDescription("Get the current state and inventory of a machine."),
		mcp.WithString("machine_id", mcp.Required(), mcp.Description("ID of the machine")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))

	s.mcpServer.AddTool(mcp.NewTool("list_machines",
		mcp.WithDescription("List the IDs of every machine."),
	), s.handleList)

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the state diagram in Mermaid syntax. Pass machine_id to highlight its current state."),
		mcp.WithString("machine_id", mcp.Description("Machine to highlight (optional)")),
	), s.handleGraph)
}

func (s *Server) triggerHandler(trigger domain.Trigger) func(context.Context, mcp.CallToolRequest, MachineArgs) (TriggerResponse, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args MachineArgs) (TriggerResponse, error) {
		if args.MachineID == "" {
			return TriggerResponse{}, fmt.Errorf("%w: machine_id is required", domain.ErrInvalidArgument)
		}
		out, snap, err := s.fleet.Fire(ctx, args.MachineID, trigger)
		if err != nil {
			s.logger.WarnContext(ctx, "MCP trigger failed", "machine_id", args.MachineID, "trigger", trigger, "err", err)
			return TriggerResponse{}, fmt.Errorf("%s failed: %w", trigger, err)
		}
		return TriggerResponse{Outcome: out, Machine: snap}, nil
	}
}

func (s *Server) handleRefill(ctx context.Context, _ mcp.CallToolRequest, args RefillArgs) (StatusResponse, error) {
	if args.MachineID == "" {
		return StatusResponse{}, fmt.Errorf("%w: machine_id is required", domain.ErrInvalidArgument)
	}
	snap, err := s.fleet.Refill(ctx, args.MachineID, args.Count)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("refill failed: %w", err)
	}
	return StatusResponse{Machine: snap}, nil
}

func (s *Server) handleStatus(ctx context.Context, _ mcp.CallToolRequest, args MachineArgs) (StatusResponse, error) {
	snap, err := s.fleet.Get(ctx, args.MachineID)
	if err != nil {
		return StatusResponse{}, fmt.Errorf("status failed: %w", err)
	}
	return StatusResponse{Machine: snap}, nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, err := s.fleet.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
	}
	if ids == nil {
		ids = []string{}
	}
	jsonBytes, _ := json.Marshal(ids)
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

func (s *Server) handleGraph(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var overlay *graph.Overlay
	if id := request.GetString("machine_id", ""); id != "" {
		snap, err := s.fleet.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("machine lookup failed: %v", err)), nil
		}
		overlay = &graph.Overlay{Current: snap.State}
	}
	return mcp.NewToolResultText(graph.GenerateMermaid(runtime.Table(), overlay)), nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("dispenser://graph", "Machine State Diagram",
		mcp.WithMIMEType("text/plain"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "dispenser://graph",
				MIMEType: "text/plain",
				Text:     graph.GenerateMermaid(runtime.Table(), nil),
			},
		}, nil
	})
}
