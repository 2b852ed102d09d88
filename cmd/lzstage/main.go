package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	lzerrors "github.com/franksops/lzstage/errors"
)

func main() {
	// Handle signals for graceful shutdown: running transfers finish, no new ones start.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(exitCode(rootCmd.ExecuteContext(ctx), os.Stderr))
}

// exitCode reports err on w and maps it to the process exit status.
// Declining to continue is not a failure.
func exitCode(err error, w io.Writer) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, lzerrors.ErrUserCanceled) {
		fmt.Fprintf(w, "lzstage: %v\n", err)
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(w, "lzstage: interrupted")
		return 130
	}

	fmt.Fprintf(w, "lzstage: %v\n", err)
	var e *lzerrors.Error
	if errors.As(err, &e) && e.Path != "" {
		fmt.Fprintf(w, "lzstage: %s failed for %s\n", e.Code, e.Path)
	}
	return 1
}
