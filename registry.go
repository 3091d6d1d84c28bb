package script

import (
	"sort"
	"strings"
	"sync"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
)

type scriptNativeRegistry struct {
	mu      sync.RWMutex
	natives map[string]interpreter.NativeFunction
	opts    NativeRegistryOptions
}

type NativeRegistryOptions struct {
	AllowOverride bool
	Frozen        bool
}

var (
	nativeRegistryInitOnce sync.Once
	nativeRegistry         = &scriptNativeRegistry{
		natives: make(map[string]interpreter.NativeFunction),
		opts: NativeRegistryOptions{
			AllowOverride: false,
			Frozen:        false,
		},
	}
)

// RegisterNative adds fn to every program built by Exec and Host. Failures
// are ignored; use RegisterNativeE to observe them.
func RegisterNative(name string, fn interpreter.NativeFunction) {
	ensureNativeRegistryInitialized()
	_ = nativeRegistry.register(name, fn, false)
}

func RegisterNativeE(name string, fn interpreter.NativeFunction) error {
	ensureNativeRegistryInitialized()
	return nativeRegistry.register(name, fn, false)
}

func UnregisterNative(name string) error {
	ensureNativeRegistryInitialized()
	return nativeRegistry.unregister(name)
}

func SetNativeRegistryOptions(opts NativeRegistryOptions) {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.Lock()
	nativeRegistry.opts = opts
	nativeRegistry.mu.Unlock()
}

func GetNativeRegistryOptions() NativeRegistryOptions {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.RLock()
	defer nativeRegistry.mu.RUnlock()
	return nativeRegistry.opts
}

func FreezeNativeRegistry() {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.Lock()
	nativeRegistry.opts.Frozen = true
	nativeRegistry.mu.Unlock()
}

func UnfreezeNativeRegistry() {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.Lock()
	nativeRegistry.opts.Frozen = false
	nativeRegistry.mu.Unlock()
}

func LookupNative(name string) (interpreter.NativeFunction, bool) {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.RLock()
	defer nativeRegistry.mu.RUnlock()
	fn, ok := nativeRegistry.natives[strings.TrimSpace(name)]
	return fn, ok
}

// NativeNames lists the registered natives in sorted order.
func NativeNames() []string {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.RLock()
	defer nativeRegistry.mu.RUnlock()
	names := make([]string, 0, len(nativeRegistry.natives))
	for name := range nativeRegistry.natives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registeredNatives() map[string]interpreter.NativeFunction {
	ensureNativeRegistryInitialized()
	nativeRegistry.mu.RLock()
	defer nativeRegistry.mu.RUnlock()
	out := make(map[string]interpreter.NativeFunction, len(nativeRegistry.natives))
	for name, fn := range nativeRegistry.natives {
		out[name] = fn
	}
	return out
}

func ensureNativeRegistryInitialized() {
	nativeRegistryInitOnce.Do(registerDefaultNatives)
}

func (r *scriptNativeRegistry) register(name string, fn interpreter.NativeFunction, internal bool) error {
	n := strings.TrimSpace(name)
	if n == "" || fn == nil {
		return errs.New(errs.KindRegistry, errs.Position{}, "invalid native function registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen && !internal {
		return errs.New(errs.KindRegistry, errs.Position{}, "native registry is frozen")
	}
	if _, exists := r.natives[n]; exists && !r.opts.AllowOverride && !internal {
		return errs.New(errs.KindRegistry, errs.Position{}, "native function already exists: %s", n)
	}
	r.natives[n] = fn
	return nil
}

func (r *scriptNativeRegistry) unregister(name string) error {
	n := strings.TrimSpace(name)
	if n == "" {
		return errs.New(errs.KindRegistry, errs.Position{}, "invalid native function name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.opts.Frozen {
		return errs.New(errs.KindRegistry, errs.Position{}, "native registry is frozen")
	}
	delete(r.natives, n)
	return nil
}
