package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	mcpserver "copyflat/internal/mcp"
)

// noopEmitter is a no-op EventEmitter used in MCP mode, where stdout carries the protocol.
type noopEmitter struct{}

func (noopEmitter) Emit(_ context.Context, _ string, _ any) {}

// ServeMCP runs copyflat as an MCP server on stdin/stdout until interrupted.
func ServeMCP(cfgPath string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := New(cfgPath, noopEmitter{})
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.Watch || a.cfg.Schedule != "" {
		a.convert.StartWatchers(ctx)
	}

	mcpSrv := mcpserver.New(mcpserver.Deps{
		Emitter: noopEmitter{},
		Convert: a.convert,
	})

	log.Println("[MCP] Starting standalone stdio server...")
	return mcpSrv.ServeStdio()
}
