// Command jitdemo drives the method compiler and runtime glue end to
// end against a handful of toy methods, standing in for the bytecode a
// real class loader would hand this package. It has no class-file
// parser and no heap beyond the one in heap.go — both are explicitly
// out of scope for this module — so every scenario builds its own
// classes, methods, and compiler-IR instruction streams directly in Go
// before invoking them through the same Processor/Invoke path a real
// embedder would use.
package main

import (
	"log"
	"os"
	"strings"

	"jitvm/pkg/compiler"
	"jitvm/pkg/runtime"
	"jitvm/pkg/runtime/codecache"
	"jitvm/pkg/vm"
)

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("jitdemo: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("jitdemo: %v", err)
	}
}

func run(cfg config) error {
	wordSize, err := cfg.abiWordSize()
	if err != nil {
		return err
	}

	h := newHeap()

	// The method compiler's own templates (null checks, bounds checks,
	// checkcast) throw these four classes without ever going through a
	// bytecode-level class reference, so they are resolved and bound
	// once up front, mirroring a JVM's eager bootstrap-exception-class
	// resolution.
	compiler.BindWellKnownClasses(
		h.defineClass("java/lang/NullPointerException"),
		h.defineClass("java/lang/ArrayIndexOutOfBoundsException"),
		h.defineClass("java/lang/NegativeArraySizeException"),
		h.defineClass("java/lang/ClassCastException"),
	)

	src := newSourceRegistry()
	scenarios := buildScenarios(h, src)

	if !cfg.JIT {
		log.Printf("jitdemo: -jit=false, printing plan only")
		for _, s := range scenarios {
			log.Printf("  would run scenario %s", s.name)
		}
		return nil
	}

	var cache *codecache.Cache
	if cfg.CacheDir != "" {
		cache, err = codecache.Open(cfg.CacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	helpers := h.helpers()
	logger := log.New(os.Stdout, "", 0)

	p, err := runtime.NewProcessor(wordSize, cfg.MemSize, src.lookup, cache, helpers, logger)
	if err != nil {
		return err
	}
	p.Verbose = cfg.Trace

	thread := vm.NewThread(nil)

	wanted := selectScenarios(scenarios, cfg.Scenarios)
	for _, s := range wanted {
		if err := s.run(p, thread); err != nil {
			return err
		}
	}

	return nil
}

func selectScenarios(all []scenario, names string) []scenario {
	if names == "" || names == "all" {
		return all
	}
	want := map[string]bool{}
	for _, n := range strings.Split(names, ",") {
		want[strings.TrimSpace(n)] = true
	}
	var out []scenario
	for _, s := range all {
		if want[s.name] {
			out = append(out, s)
		}
	}
	return out
}
