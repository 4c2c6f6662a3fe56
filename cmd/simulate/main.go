package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/wagerpool/internal/simulate"
	"github.com/okian/wagerpool/pkg/logger"
	"github.com/pterm/pterm"
)

const defaultTimeout = time.Minute

func main() {
	var (
		file     = flag.String("file", "", "Scenario YAML file (overrides -scenario)")
		scenario = flag.String("scenario", "escrow", "Built-in scenario: "+strings.Join(simulate.BuiltinNames(), ", "))
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	_ = logger.SetLevelString(level)

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	code := run(ctx, *file, *scenario)
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, file, name string) int {
	var (
		sc  *simulate.Scenario
		err error
	)
	if file != "" {
		sc, err = simulate.Load(file)
	} else {
		sc, err = simulate.Builtin(name)
	}
	if err != nil {
		pterm.Error.Println(err.Error())
		return 2
	}

	rep, err := simulate.NewRunner(simulate.WithLogger(logger.Named("simulate"))).Run(ctx, sc)
	if err != nil {
		pterm.Error.Println(err.Error())
		return 1
	}
	if err := simulate.Render(os.Stdout, rep); err != nil {
		pterm.Error.Println(err.Error())
		return 1
	}
	if rep.Err() != nil {
		return 1
	}
	return 0
}
