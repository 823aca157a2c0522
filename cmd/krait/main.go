// krait is a UCI chess engine: bitboard move generation, an NNUE
// evaluator and a Lazy-SMP parallel search over a shared lock-free
// transposition table.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/op/go-logging"
	"github.com/pkg/profile"

	"github.com/hailam/krait/internal/config"
	"github.com/hailam/krait/internal/engine"
	"github.com/hailam/krait/internal/uci"
)

var log = logging.MustGetLogger("krait")

func main() {
	configPath := flag.String("config", "", "path to a krait.toml settings file")
	logLevel := flag.String("loglevel", "warning", "log level: debug, info, warning, error")
	cpuProfile := flag.Bool("cpuprofile", false, "write a CPU profile to the working directory")
	flag.Parse()

	setupLogging(*logLevel)

	if *cpuProfile {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
	}

	settings, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "info string %v\n", err)
	}

	pool, err := engine.NewPool(settings.Threads, settings.Hash, engine.MaterialEvaluator{})
	if err != nil {
		log.Fatalf("engine init: %v", err)
	}

	handler := uci.New(pool, settings)
	defer handler.Close()

	handler.Run()
}

// setupLogging routes leveled diagnostics to stderr; stdout stays clean
// for the UCI protocol.
func setupLogging(level string) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatted := logging.NewBackendFormatter(backend,
		logging.MustStringFormatter(`%{time:15:04:05.000} %{module} %{level:.4s} %{message}`))
	leveled := logging.AddModuleLevel(formatted)

	lvl, err := logging.LogLevel(level)
	if err != nil {
		lvl = logging.WARNING
	}
	leveled.SetLevel(lvl, "")

	logging.SetBackend(leveled)
}
