// Command vex is a thin driver over the vex execution core: it wires
// together the heap, interpreter and JIT and runs a program loaded
// from a module path. Source tokenization/parsing is out of scope (see
// spec.md §1), so this CLI expects a ModuleLoader implementation to be
// linked in by the embedding application; without one it can only
// report that no program was loaded.
package main

import (
	"flag"
	"log"

	"github.com/vexlang/vex"
)

func main() {
	var (
		gcThreshold  = flag.Int("gc-threshold", 1000, "allocations between GC cycles")
		jitThreshold = flag.Int64("jit-hot-threshold", 100, "calls before a function is JIT-compiled")
		jitEnabled   = flag.Bool("jit", true, "enable the method-tier JIT")
		entry        = flag.String("entry", "main", "entry point function name")
		modulePath   = flag.String("module", "", "path of the module to load and run")
	)
	flag.Parse()

	if *modulePath == "" {
		log.Fatal("no module path given (-module)")
	}

	logger := vex.NewDevelopmentLogger()
	defer logger.Sync()

	heap := vex.NewHeap(*gcThreshold, logger)
	interp := vex.NewInterpreter(heap, nil, logger)
	interp.JIT = vex.NewJIT(*jitThreshold, *jitEnabled, logger)

	if err := interp.Import(*modulePath); err != nil {
		log.Fatalf("can't load module %q: %s", *modulePath, err)
	}

	result, ok := interp.CallFunc(*entry, nil)
	if !ok {
		log.Fatalf("entry point %q not found in %q", *entry, *modulePath)
	}
	log.Println(vex.FormatValue(heap, result))
}
