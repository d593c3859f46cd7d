package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/boardingpass-tracker/internal/common"
	"github.com/joseph-ayodele/boardingpass-tracker/internal/core"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	// .env is optional; real environment variables always win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		printError("Warning: could not load .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		printError("Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps failures to distinct statuses so scripts can tell bad input
// from documents nothing could read.
func exitCode(err error) int {
	var ee *core.ExtractionError
	switch {
	case errors.As(err, &ee) && ee.Kind == core.KindInvalidInput:
		return 2
	case errors.Is(err, common.ErrInvalidInput):
		return 2
	case errors.As(err, &ee) && ee.Kind == core.KindExhausted:
		return 3
	case errors.As(err, &ee) && ee.Kind == core.KindExternal:
		return 4
	default:
		return 1
	}
}
