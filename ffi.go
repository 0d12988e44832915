package vex

import (
	"runtime"

	"github.com/ebitengine/purego"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// libraryNameCandidates returns the host-appropriate decorated names to
// try for a bare library name, per spec.md §4.8's "try host-appropriate
// decorations" contract, grounded on the original Rust source's
// libloading-based fallback list in ffi.rs.
func libraryNameCandidates(name string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"lib" + name + ".dylib", name + ".dylib", name}
	case "windows":
		return []string{name + ".dll", "lib" + name + ".dll", name}
	default:
		return []string{"lib" + name + ".so", name + ".so", name}
	}
}

// FFIBridge loads native shared libraries by name and dispatches typed
// calls into them, per spec.md §4.8. Loads are deduplicated across
// concurrent callers (C7 workers) via singleflight so "cache the first
// success" holds even when two goroutines race to load the same name.
type FFIBridge struct {
	group   singleflight.Group
	loaded  map[string]uintptr
	log     *zap.SugaredLogger
}

func NewFFIBridge(log *zap.SugaredLogger) *FFIBridge {
	return &FFIBridge{loaded: make(map[string]uintptr), log: log}
}

// Load opens name, trying each host-appropriate decoration in turn,
// and caches the first handle that succeeds.
func (b *FFIBridge) Load(name string) (uintptr, error) {
	if h, ok := b.loaded[name]; ok {
		return h, nil
	}
	v, err, _ := b.group.Do(name, func() (any, error) {
		var lastErr error
		for _, candidate := range libraryNameCandidates(name) {
			handle, err := purego.Dlopen(candidate, purego.RTLD_NOW|purego.RTLD_GLOBAL)
			if err == nil {
				return handle, nil
			}
			lastErr = err
		}
		return uintptr(0), newFFIError("load %q: %v", name, lastErr)
	})
	if err != nil {
		return 0, err
	}
	handle := v.(uintptr)
	b.loaded[name] = handle
	if b.log != nil {
		b.log.Debugw("ffi library loaded", "name", name)
	}
	return handle, nil
}

// Arity/return-type dispatch tables, per spec.md §4.8: i64 functions
// of arity 0-3, f64 functions of arity 1-2, void functions of arity
// 0-1. Anything outside these tables is a typed error, not a panic.

func (b *FFIBridge) CallI64(handle uintptr, symbol string, args ...int64) (int64, error) {
	if len(args) > 3 {
		return 0, newFFIError("i64 call %q: unsupported arity %d", symbol, len(args))
	}
	sym, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return 0, newFFIError("symbol %q: %v", symbol, err)
	}
	switch len(args) {
	case 0:
		var fn func() int64
		purego.RegisterFunc(&fn, sym)
		return fn(), nil
	case 1:
		var fn func(int64) int64
		purego.RegisterFunc(&fn, sym)
		return fn(args[0]), nil
	case 2:
		var fn func(int64, int64) int64
		purego.RegisterFunc(&fn, sym)
		return fn(args[0], args[1]), nil
	default:
		var fn func(int64, int64, int64) int64
		purego.RegisterFunc(&fn, sym)
		return fn(args[0], args[1], args[2]), nil
	}
}

func (b *FFIBridge) CallF64(handle uintptr, symbol string, args ...float64) (float64, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, newFFIError("f64 call %q: unsupported arity %d", symbol, len(args))
	}
	sym, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return 0, newFFIError("symbol %q: %v", symbol, err)
	}
	switch len(args) {
	case 1:
		var fn func(float64) float64
		purego.RegisterFunc(&fn, sym)
		return fn(args[0]), nil
	default:
		var fn func(float64, float64) float64
		purego.RegisterFunc(&fn, sym)
		return fn(args[0], args[1]), nil
	}
}

func (b *FFIBridge) CallVoid(handle uintptr, symbol string, args ...int64) error {
	if len(args) > 1 {
		return newFFIError("void call %q: unsupported arity %d", symbol, len(args))
	}
	sym, err := purego.Dlsym(handle, symbol)
	if err != nil {
		return newFFIError("symbol %q: %v", symbol, err)
	}
	switch len(args) {
	case 0:
		var fn func()
		purego.RegisterFunc(&fn, sym)
		fn()
		return nil
	default:
		var fn func(int64)
		purego.RegisterFunc(&fn, sym)
		fn(args[0])
		return nil
	}
}
