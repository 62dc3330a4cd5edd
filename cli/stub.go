package cli

// This file contains the stub-server command, a local stand-in for the
// recommendation service.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"github.com/valery-judah/semantic-shelf/stubservice"
	"github.com/valery-judah/semantic-shelf/telemetry"
)

// parseFaults parses ANCHOR=KIND pairs.
func parseFaults(specs []string) (map[string]stubservice.Fault, error) {
	faults := make(map[string]stubservice.Fault, len(specs))
	for _, spec := range specs {
		anchorID, kind, ok := strings.Cut(spec, "=")
		if !ok || anchorID == "" {
			return nil, fmt.Errorf("invalid fault %q, expected ANCHOR=KIND", spec)
		}
		f, err := stubservice.ParseFault(kind)
		if err != nil {
			return nil, err
		}
		faults[anchorID] = f
	}
	return faults, nil
}

func (a *App) stubServer(ctx *cli.Context) error {
	faults, err := parseFaults(ctx.StringSlice("fault"))
	if err != nil {
		return err
	}
	opts := stubservice.Options{
		Latency: ctx.Duration("latency"),
		Faults:  faults,
	}

	if dsn := ctx.String("db"); dsn != "" {
		store, err := telemetry.NewSQLiteStore(dsn)
		if err != nil {
			return err
		}
		defer store.Close()
		opts.Events = store
	}

	e := stubservice.New(a.logger, opts)
	addr := ctx.String("addr")

	errCh := make(chan error, 1)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.logger.Info().Str("addr", addr).Int("faults", len(faults)).Bool("telemetry", opts.Events != nil).Msg("Stub service started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start stub service: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Context.Done():
	}

	a.logger.Info().Msg("Shutting down stub service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down stub service: %w", err)
	}
	return nil
}
