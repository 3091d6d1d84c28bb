package script

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/oarkflow/log"
	"github.com/oarkflow/xid"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
	"github.com/oarkflow/script/pkg/bridge"
	"github.com/oarkflow/script/pkg/fetch"
)

var ErrHostClosed = errs.New(errs.KindHost, errs.Position{}, "host is closed")

// Host owns one program and runs every operation against it on a single
// goroutine. Callers and background work such as fetch send commands to
// that goroutine instead of touching the program directly.
type Host struct {
	id         string
	opts       *options
	logger     *log.Logger
	program    *interpreter.Program
	sink       *outputSink
	jsonGlobal *interpreter.Object

	commands  chan command
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	inflight  int
	idle      chan struct{}
	asyncErrs []error
}

type command struct {
	ctx   context.Context
	run   func(ctx context.Context) (interpreter.Value, error)
	reply chan reply
	done  func(err error)
}

type reply struct {
	value interpreter.Value
	err   error
}

func NewHost(opts ...Option) *Host {
	o := newOptions(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	h := &Host{
		id:       xid.New().String(),
		opts:     o,
		logger:   o.logger,
		program:  interpreter.NewProgram(nil, GetRuntimeConfig().programOptions()...),
		sink:     newOutputSink(o.output),
		commands: make(chan command, o.queueSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.jsonGlobal = o.install(h.program, h.sink)
	h.program.RegisterNative("fetch", h.fetchNative)
	for name, val := range bridge.FromGoMap(o.globals) {
		h.program.SetGlobal(name, val)
	}
	go h.loop()
	return h
}

func (h *Host) ID() string {
	return h.id
}

// Load compiles source and runs it against the host program. Function
// declarations stay available to later Call and Eval commands.
func (h *Host) Load(ctx context.Context, source string) error {
	_, err := h.Eval(ctx, source)
	return err
}

// Eval runs source and returns the value of its last statement.
func (h *Host) Eval(ctx context.Context, source string) (any, error) {
	program, err := h.opts.programCache().compile(source)
	if err != nil {
		return nil, err
	}
	v, err := h.submit(ctx, func(ctx context.Context) (interpreter.Value, error) {
		return h.program.Exec(ctx, program)
	})
	if err != nil {
		return nil, err
	}
	return bridge.ToGo(v)
}

// Call invokes a script function by name with Go arguments.
func (h *Host) Call(ctx context.Context, name string, args ...any) (any, error) {
	values := make([]interpreter.Value, len(args))
	for i, arg := range args {
		values[i] = bridge.FromGo(arg)
	}
	v, err := h.submit(ctx, func(ctx context.Context) (interpreter.Value, error) {
		return h.program.Call(ctx, name, values...)
	})
	if err != nil {
		return nil, err
	}
	return bridge.ToGo(v)
}

// Globals snapshots the top-level bindings.
func (h *Host) Globals(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	_, err := h.submit(ctx, func(context.Context) (interpreter.Value, error) {
		var err error
		out, err = snapshot(h.program, h.jsonGlobal)
		return interpreter.UNDEFINED, err
	})
	return out, err
}

// Output returns every line written by log and print so far.
func (h *Host) Output() []string {
	return h.sink.Lines()
}

// Wait blocks until every pending fetch has delivered its callback and
// returns the errors raised by those callbacks since the last Wait.
func (h *Host) Wait(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		if h.inflight == 0 {
			err := errors.Join(h.asyncErrs...)
			h.asyncErrs = nil
			h.mu.Unlock()
			return err
		}
		idle := h.idle
		h.mu.Unlock()
		select {
		case <-idle:
		case <-ctx.Done():
			return wrapContextErr(ctx.Err())
		case <-h.done:
			return ErrHostClosed
		}
	}
}

// Close stops the owner goroutine and cancels pending fetches. Commands
// already running finish first.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		close(h.quit)
		h.cancel()
		<-h.done
		h.logger.Info().Str("host", h.id).Msg("script host closed")
	})
	return nil
}

func (h *Host) loop() {
	defer close(h.done)
	for {
		select {
		case cmd := <-h.commands:
			h.execute(cmd)
		case <-h.quit:
			return
		}
	}
}

func (h *Host) execute(cmd command) {
	cfg := effectiveRuntimeConfig(cmd.ctx)
	ctx, cancel := withExecTimeout(cmd.ctx, cfg)
	defer cancel()

	var r reply
	if err := ctx.Err(); err != nil {
		r.err = wrapContextErr(err)
	} else {
		r.value, r.err = cmd.run(ctx)
		r.err = wrapContextErr(r.err)
	}
	if cmd.reply != nil {
		cmd.reply <- r
	}
	if cmd.done != nil {
		cmd.done(r.err)
	}
}

func (h *Host) submit(ctx context.Context, run func(ctx context.Context) (interpreter.Value, error)) (interpreter.Value, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cmd := command{ctx: ctx, run: run, reply: make(chan reply, 1)}
	select {
	case h.commands <- cmd:
	case <-h.quit:
		return nil, ErrHostClosed
	case <-ctx.Done():
		return nil, wrapContextErr(ctx.Err())
	}
	select {
	case r := <-cmd.reply:
		return r.value, r.err
	case <-ctx.Done():
		return nil, wrapContextErr(ctx.Err())
	case <-h.done:
		select {
		case r := <-cmd.reply:
			return r.value, r.err
		default:
			return nil, ErrHostClosed
		}
	}
}

func (h *Host) begin() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.inflight == 0 {
		h.idle = make(chan struct{})
	}
	h.inflight++
}

func (h *Host) end(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err != nil {
		h.asyncErrs = append(h.asyncErrs, err)
	}
	h.inflight--
	if h.inflight == 0 {
		close(h.idle)
	}
}

// fetchNative implements fetch(url, callback) and
// fetch(url, options, callback). The request runs in the background and
// the callback is queued back onto the owner goroutine.
func (h *Host) fetchNative(args []interpreter.Value) (interpreter.Value, error) {
	req, callback, err := parseFetchArgs(args)
	if err != nil {
		return nil, err
	}
	h.begin()
	go func() {
		start := time.Now()
		res, err := h.opts.fetchClient.Do(h.ctx, req)
		if GetRuntimeConfig().LogExecution {
			if err != nil {
				h.logger.Warn().Str("host", h.id).Str("url", req.URL).Err(err).Msg("fetch failed")
			} else {
				h.logger.Info().Str("host", h.id).Str("url", req.URL).Int("status", res.Status).Dur("duration", time.Since(start)).Msg("fetch completed")
			}
		}
		var cbArgs []interpreter.Value
		if err != nil {
			cbArgs = []interpreter.Value{interpreter.UNDEFINED, interpreter.NewString(err.Error())}
		} else {
			cbArgs = []interpreter.Value{responseObject(res)}
		}
		cmd := command{
			ctx: h.ctx,
			run: func(ctx context.Context) (interpreter.Value, error) {
				return h.program.CallFunction(ctx, callback, cbArgs...)
			},
			done: h.end,
		}
		select {
		case h.commands <- cmd:
		case <-h.quit:
			h.end(nil)
		}
	}()
	return interpreter.UNDEFINED, nil
}

func parseFetchArgs(args []interpreter.Value) (fetch.Request, *interpreter.Function, error) {
	var req fetch.Request
	if len(args) != 2 && len(args) != 3 {
		return req, nil, errs.Type(errs.Position{}, "fetch expects (url, callback) or (url, options, callback)")
	}
	url, ok := args[0].(*interpreter.String)
	if !ok || strings.TrimSpace(url.Value) == "" {
		return req, nil, errs.Type(errs.Position{}, "fetch: url must be a non-empty string")
	}
	req.URL = url.Value
	callback, ok := args[len(args)-1].(*interpreter.Function)
	if !ok {
		return req, nil, errs.Type(errs.Position{}, "fetch: callback is not a function")
	}
	if len(args) == 3 {
		opts, ok := args[1].(*interpreter.Object)
		if !ok {
			return req, nil, errs.Type(errs.Position{}, "fetch: options must be an object")
		}
		if err := applyFetchOptions(&req, opts); err != nil {
			return req, nil, err
		}
	}
	return req, callback, nil
}

func applyFetchOptions(req *fetch.Request, opts *interpreter.Object) error {
	if m, ok := opts.Pairs["method"]; ok {
		s, ok := m.(*interpreter.String)
		if !ok {
			return errs.Type(errs.Position{}, "fetch: method must be a string")
		}
		req.Method = s.Value
	}
	if hv, ok := opts.Pairs["headers"]; ok {
		headers, ok := hv.(*interpreter.Object)
		if !ok {
			return errs.Type(errs.Position{}, "fetch: headers must be an object")
		}
		req.Headers = make(map[string]string, len(headers.Pairs))
		for _, k := range headers.Keys() {
			req.Headers[k] = interpreter.ToString(headers.Pairs[k])
		}
	}
	switch body := opts.Get("body").(type) {
	case *interpreter.Undefined, *interpreter.Null:
	case *interpreter.String:
		req.Body = []byte(body.Value)
	case *interpreter.Object:
		data, err := bridge.ToJSON(body)
		if err != nil {
			return err
		}
		req.Body = data
		if req.Headers == nil {
			req.Headers = make(map[string]string)
		}
		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = "application/json"
		}
	default:
		return errs.Type(errs.Position{}, "fetch: body must be a string or an object")
	}
	return nil
}

func responseObject(res *fetch.Response) *interpreter.Object {
	headers := make(map[string]any, len(res.Headers))
	for k, v := range res.Headers {
		headers[k] = v
	}
	var decoded interpreter.Value = interpreter.UNDEFINED
	if v, err := bridge.FromJSON(res.Body); err == nil {
		decoded = v
	}
	return interpreter.NewObject(map[string]interpreter.Value{
		"status":  interpreter.NewInteger(int64(res.Status)),
		"ok":      interpreter.NewBoolean(res.OK()),
		"body":    interpreter.NewString(string(res.Body)),
		"headers": interpreter.NewObject(bridge.FromGoMap(headers)),
		"json":    decoded,
	})
}
