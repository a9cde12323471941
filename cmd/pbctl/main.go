package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/pbspread/internal/pbctl"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pbctl.Execute(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "pbctl:", err)
		stop()
		os.Exit(1)
	}
}
