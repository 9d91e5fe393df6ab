// Command hotrace replays handover simulation notifications and writes the
// handover and flow statistics datasets.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tebeka/atexit"
)

func main() {
	setupLogging("info")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-signals
		log.Warn().Str("signal", sig.String()).Msg("interrupted, flushing outputs")
		atexit.Exit(130)
	}()

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("hotrace failed")
		atexit.Exit(1)
	}

	atexit.Exit(0)
}
