package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"jitvm/pkg/abi"
)

// config holds the demo's tunables. Flags set sane defaults; an
// optional -config file overrides them, matching the way the rest of
// this module keeps its own knobs (executable-memory pool size, word
// size) as plain constructor arguments rather than hidden globals.
type config struct {
	Scenarios string `json:"scenarios"`
	Trace     bool   `json:"trace"`
	WordSize  int    `json:"wordSize"`
	MemSize   int    `json:"memSize"`
	CacheDir  string `json:"cacheDir"`
	JIT       bool   `json:"jit"`
}

func defaultConfig() config {
	return config{
		Scenarios: "all",
		Trace:     false,
		WordSize:  64,
		MemSize:   1 << 20,
		CacheDir:  "",
		JIT:       true,
	}
}

func parseConfig(args []string) (config, error) {
	cfg := defaultConfig()

	fs := flag.NewFlagSet("jitdemo", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a JSON file overriding the defaults below")
	fs.StringVar(&cfg.Scenarios, "bytecode", cfg.Scenarios, "comma-separated scenario names to run (e1,e2,e3,e4,e5) or \"all\"")
	fs.BoolVar(&cfg.Trace, "trace", cfg.Trace, "log every lazy compile and call-site patch")
	fs.IntVar(&cfg.WordSize, "wordsize", cfg.WordSize, "target word size in bits: 32 or 64")
	fs.IntVar(&cfg.MemSize, "memsize", cfg.MemSize, "bytes reserved for the executable-memory region")
	fs.StringVar(&cfg.CacheDir, "cachedir", cfg.CacheDir, "optional pebble directory for the persisted code cache")
	fs.BoolVar(&cfg.JIT, "jit", cfg.JIT, "compile and run scenarios; false only prints the plan")

	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			return config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return cfg, nil
}

func (c config) abiWordSize() (abi.WordSize, error) {
	switch c.WordSize {
	case 32:
		return abi.Word32, nil
	case 64:
		return abi.Word64, nil
	default:
		return 0, fmt.Errorf("unsupported word size %d (want 32 or 64)", c.WordSize)
	}
}
