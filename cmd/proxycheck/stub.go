package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelplex/proxycheck/internal/stub"
)

type stubCommand struct {
	HTTP       string `long:"http" default:":9000" description:"HTTP server address in [HOST]:PORT format"`
	Reply      string `long:"reply" description:"Assistant text returned by every completion"`
	FailStatus int    `long:"fail-status" description:"Answer every provider request with this HTTP error status"`
}

func (c *stubCommand) Execute(_ []string) error {
	if c.FailStatus != 0 && (c.FailStatus < 400 || c.FailStatus > 599) {
		return fmt.Errorf("--fail-status must be between 400 and 599, got %d", c.FailStatus)
	}

	srv := stub.New(c.HTTP, stub.Options{
		Reply:      c.Reply,
		FailStatus: c.FailStatus,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errCh:
		return err
	case <-sigChan:
		slog.Info("Shutting down...")
		srv.Stop()
		return <-errCh
	}
}
