// Package main is the extensionhost command-line interface. It hosts the built-in vscode-agent extension and any
// WASM extensions found in an extensions directory, and runs commands they contribute.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/spirefy/go-extension-host/internal/ctxlog"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)

	err := newRootCmd(os.Stdout).Run(ctx, os.Args)

	if ctx.Err() != nil {
		ctxlog.Error(ctx, "command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Error(ctx, "command execution failed", "error", err)
		os.Exit(1)
	}
}
