// Command ringwave runs a ring-road shock-wave analysis and writes the result
// as JSON to stdout.
//
// The scenario is read from the file given as the first argument, or from
// stdin when that argument is "-". Without an argument the YAML config at
// -config (default $RINGWAVE_CONFIG, then configs/ringwave.yaml) is used and
// created with defaults if missing. A .env file in the working directory is
// loaded first.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"

	"github.com/cxd309/ringwave/internal/config"
	"github.com/cxd309/ringwave/internal/engine"
	"github.com/cxd309/ringwave/internal/logging"
)

const defaultConfigPath = "configs/ringwave.yaml"

var (
	configPath = flag.String("config", "", "path to the YAML scenario (default $RINGWAVE_CONFIG or "+defaultConfigPath+")")
	initConfig = flag.Bool("init-config", false, "generate the default config file and exit")
	record     = flag.Bool("record", false, "include the per-tick vehicle log in the output")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error loading .env: %v\n", err)
		os.Exit(1)
	}

	path := *configPath
	if path == "" {
		path = os.Getenv(config.EnvConfigPath)
	}
	if path == "" {
		path = defaultConfigPath
	}

	if *initConfig {
		if err := config.GenerateDefault(path); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Config file generated: %s\n", path)
		return
	}

	if err := run(path, flag.Args(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "simulation error: %v\n", err)
		os.Exit(1)
	}
}

func run(path string, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg, err := loadScenario(path, args, stdin)
	if err != nil {
		return err
	}
	if *record {
		cfg.Simulation.Record = true
	}

	logger, cleanup, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanup()

	out, err := engine.Analyze(cfg, logger)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func loadScenario(path string, args []string, stdin io.Reader) (*config.Config, error) {
	if len(args) == 0 {
		return config.Load(path)
	}

	var (
		data []byte
		err  error
	)
	if args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("error reading input: %w", err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return nil, err
	}
	if lvl := os.Getenv(config.EnvLogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	return cfg, nil
}
