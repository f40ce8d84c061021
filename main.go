package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nas-tidy/cmd"
	"nas-tidy/internal/events"
	"nas-tidy/internal/util"

	"golang.org/x/term"
)

func main() {
	// diagnostics go to the log file next to the config once one is loaded
	log.SetOutput(io.Discard)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	// Capture original terminal state (if stdin is a TTY) so we can restore on forced exit.
	var origState *term.State
	if term.IsTerminal(int(os.Stdin.Fd())) {
		if st, err := term.GetState(int(os.Stdin.Fd())); err == nil {
			origState = st
		}
	}

	forceExit := func(code int) {
		if origState != nil {
			_ = term.Restore(int(os.Stdin.Fd()), origState)
		}
		os.Exit(code)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown := make(chan struct{})
	events.GlobalBus.SubscribeOnce(events.EventShutdownRequested, func(reason string) {
		log.Printf("shutdown requested: %s\n", reason)
		cancel()
		close(shutdown)
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		events.GlobalBus.Publish(events.EventShutdownRequested, sig.String())
	}()

	done := make(chan error, 1)
	go func() {
		done <- cmd.ExecuteContext(ctx)
	}()

	code := 0
	select {
	case err := <-done:
		if err != nil {
			code = 1
		}
	case <-shutdown:
		// a remote call in flight only notices cancellation when the
		// adapter interrupts it, so give it a moment
		select {
		case err := <-done:
			if err != nil {
				code = 1
			}
		case <-time.After(5 * time.Second):
			log.Println("timeout waiting for command after shutdown request, forcing exit")
			util.Default.Println("\n⏹ Aborted")
			forceExit(130)
		}
	}

	if origState != nil {
		_ = term.Restore(int(os.Stdin.Fd()), origState)
	}
	if code != 0 {
		os.Exit(code)
	}
}
