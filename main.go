package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"copyflat/internal/app"
	"copyflat/internal/config"
)

const usage = `usage: copyflat <command> [config]

commands:
  compile   compile the copybook into schema artifacts
  convert   decode every mapped flat file
  run       compile, then convert
  watch     run, then follow the schedule and watched files
  mcp       serve the MCP tools on stdio
  init      write a starter config

config defaults to ` + config.DefaultFile + "\n"

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	cmd := os.Args[1]
	cfgPath := config.DefaultFile
	if len(os.Args) > 2 {
		cfgPath = os.Args[2]
	}

	if err := dispatch(cmd, cfgPath); err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func dispatch(cmd, cfgPath string) error {
	switch cmd {
	case "init":
		return app.Init(cfgPath)
	case "mcp":
		return app.ServeMCP(cfgPath)
	case "compile", "convert", "run", "watch":
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "compile":
		return a.Compile(ctx)
	case "convert":
		return a.Convert(ctx)
	case "run":
		return a.Run(ctx)
	default:
		return a.Watch(ctx)
	}
}
