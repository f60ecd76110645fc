package shared

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM. The
// first signal is logged; a second one kills the process the usual way
// because the handler only fires once.
func SignalContext(logger zerolog.Logger) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigs
		signal.Stop(sigs)
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	return ctx
}
