package script

import (
	"io"

	"github.com/oarkflow/log"

	"github.com/oarkflow/script/interpreter"
	"github.com/oarkflow/script/pkg/fetch"
)

const defaultQueueSize = 64

type Option func(*options)

type options struct {
	logger      *log.Logger
	output      io.Writer
	natives     map[string]interpreter.NativeFunction
	globals     map[string]any
	noCache     bool
	fetchClient *fetch.Client
	queueSize   int
}

func newOptions(opts ...Option) *options {
	o := &options{
		logger:    &log.DefaultLogger,
		natives:   make(map[string]interpreter.NativeFunction),
		globals:   make(map[string]any),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.fetchClient == nil {
		o.fetchClient = fetch.New()
	}
	return o
}

func WithLogger(logger *log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithOutput mirrors log and print output to w.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithNative registers fn for a single Exec or Host, on top of the
// process-wide registry.
func WithNative(name string, fn interpreter.NativeFunction) Option {
	return func(o *options) {
		if name != "" && fn != nil {
			o.natives[name] = fn
		}
	}
}

// WithGlobals binds host values before any script runs.
func WithGlobals(globals map[string]any) Option {
	return func(o *options) {
		for k, v := range globals {
			o.globals[k] = v
		}
	}
}

func WithoutCache() Option {
	return func(o *options) { o.noCache = true }
}

func WithFetchClient(client *fetch.Client) Option {
	return func(o *options) {
		if client != nil {
			o.fetchClient = client
		}
	}
}

func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func (o *options) programCache() *programCache {
	if o.noCache {
		return nil
	}
	return defaultProgramCache()
}

// install binds natives and globals in the order later entries win:
// output, registry, per-call natives, then the JSON object, which is
// returned so callers can leave it out of snapshots.
func (o *options) install(p *interpreter.Program, sink *outputSink) *interpreter.Object {
	p.RegisterNative("log", sink.native)
	p.RegisterNative("print", sink.native)
	for name, fn := range registeredNatives() {
		p.RegisterNative(name, fn)
	}
	for name, fn := range o.natives {
		p.RegisterNative(name, fn)
	}
	json := jsonObject()
	p.SetGlobal("JSON", json)
	return json
}
