package script

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
)

func quietRuntime(t *testing.T) {
	t.Helper()
	orig := GetRuntimeConfig()
	t.Cleanup(func() { SetRuntimeConfig(orig) })
	cfg := orig
	cfg.LogExecution = false
	SetRuntimeConfig(cfg)
}

func TestExecLogsEachIteration(t *testing.T) {
	quietRuntime(t)
	res, err := Exec(context.Background(), "let i=0; for(;i<3;i++){ log(i); }", nil)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !reflect.DeepEqual(res.Output, []string{"0", "1", "2"}) {
		t.Fatalf("unexpected output %#v", res.Output)
	}
	if got := res.Globals["i"]; got != int64(3) {
		t.Fatalf("expected i=3, got %#v", got)
	}
	if res.ID == "" {
		t.Fatalf("expected a run id")
	}
}

func TestExecFunctionCall(t *testing.T) {
	quietRuntime(t)
	res, err := Exec(context.Background(), "function f(a){ return a+1; } log(f(2));", nil)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if !reflect.DeepEqual(res.Output, []string{"3"}) {
		t.Fatalf("unexpected output %#v", res.Output)
	}
	if _, ok := res.Globals["f"]; ok {
		t.Fatalf("functions should not appear in globals")
	}
}

func TestExecBindsGlobals(t *testing.T) {
	quietRuntime(t)
	globals := map[string]any{
		"user": map[string]any{"name": "ada", "age": 36},
	}
	res, err := Exec(context.Background(), `let greeting = "hi " + user.name; user.age + 1;`, globals)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.Value != int64(37) {
		t.Fatalf("expected 37, got %#v", res.Value)
	}
	if res.Globals["greeting"] != "hi ada" {
		t.Fatalf("unexpected greeting %#v", res.Globals["greeting"])
	}
	if _, ok := res.Globals["JSON"]; ok {
		t.Fatalf("built-in JSON object should not be reported")
	}
	user, _ := res.Globals["user"].(map[string]any)
	if user["age"] != int64(36) {
		t.Fatalf("unexpected user %#v", res.Globals["user"])
	}
}

func TestExecReturnsTypedErrors(t *testing.T) {
	quietRuntime(t)
	tests := []struct {
		source string
		want   error
	}{
		{"let x = ;", errs.ErrSyntax},
		{"y + 1;", errs.ErrReference},
		{"1 / 0;", errs.ErrArithmetic},
		{`"a" - 1;`, errs.ErrType},
		{"switch (x) {}", errs.ErrUnimplemented},
		{"const c = 1; c = 2;", errs.ErrType},
	}
	for _, tt := range tests {
		res, err := Exec(context.Background(), tt.source, nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("%q: expected %v, got %v", tt.source, tt.want, err)
			continue
		}
		if res == nil {
			t.Errorf("%q: expected a result alongside the error", tt.source)
		}
	}
}

func TestExecKeepsOutputOnFailure(t *testing.T) {
	quietRuntime(t)
	res, err := Exec(context.Background(), `log("before"); missing();`, nil)
	if !errors.Is(err, errs.ErrReference) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
	if !reflect.DeepEqual(res.Output, []string{"before"}) {
		t.Fatalf("unexpected output %#v", res.Output)
	}
}

func TestExecRuntimeLimits(t *testing.T) {
	quietRuntime(t)

	timeout := 20 * time.Millisecond
	ctx := WithRuntimeConfigOverride(context.Background(), RuntimeConfigOverride{ExecTimeout: &timeout})
	if _, err := Exec(ctx, "while (true) {}", nil); !errors.Is(err, errs.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}

	iterations := 10
	ctx = WithRuntimeConfigOverride(context.Background(), RuntimeConfigOverride{MaxLoopIterations: &iterations})
	if _, err := Exec(ctx, "let n = 0; while (true) { n++; }", nil); !errors.Is(err, errs.ErrRange) {
		t.Fatalf("expected loop limit error, got %v", err)
	}

	depth := 8
	ctx = WithRuntimeConfigOverride(context.Background(), RuntimeConfigOverride{MaxCallDepth: &depth})
	if _, err := Exec(ctx, "function r(n) { return r(n + 1); } r(0);", nil); !errors.Is(err, errs.ErrRange) {
		t.Fatalf("expected call depth error, got %v", err)
	}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Exec(canceled, "while (true) {}", nil); !errors.Is(err, errs.ErrCanceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestDefaultNatives(t *testing.T) {
	quietRuntime(t)
	tests := []struct {
		source string
		want   any
	}{
		{`len("héllo");`, int64(5)},
		{`len(keys({a: 1, b: 2}));`, int64(2)},
		{`keys({b: 1, a: 2})["0"];`, "a"},
		{`typeof(1.5);`, "number"},
		{`typeof(null);`, "object"},
		{`typeof("s");`, "string"},
		{`String(12) + "!";`, "12!"},
		{`Number("42") + 1;`, int64(43)},
		{`Number("2.5");`, 2.5},
		{`Number(true);`, int64(1)},
		{`JSON.stringify({a: 1});`, `{"a":1}`},
		{`JSON.parse("{\"n\": 2}").n + 1;`, int64(3)},
	}
	for _, tt := range tests {
		res, err := Exec(context.Background(), tt.source, nil)
		if err != nil {
			t.Errorf("%q: %v", tt.source, err)
			continue
		}
		if res.Value != tt.want {
			t.Errorf("%q: expected %#v, got %#v", tt.source, tt.want, res.Value)
		}
	}

	for _, source := range []string{`len(1);`, `keys("x");`, `JSON.parse(1);`, `JSON.parse("{");`} {
		if _, err := Exec(context.Background(), source, nil); err == nil {
			t.Errorf("%q: expected an error", source)
		}
	}
}

func TestExecOptions(t *testing.T) {
	quietRuntime(t)
	var buf bytes.Buffer
	double := func(args []interpreter.Value) (interpreter.Value, error) {
		n, ok := args[0].(*interpreter.Integer)
		if !ok {
			return nil, errs.Type(errs.Position{}, "double expects an integer")
		}
		return interpreter.NewInteger(n.Value * 2), nil
	}
	res, err := Exec(context.Background(), `print("a", 1, true); double(limit);`, nil,
		WithOutput(&buf),
		WithNative("double", double),
		WithGlobals(map[string]any{"limit": 21}),
		WithoutCache(),
	)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if buf.String() != "a 1 true\n" {
		t.Fatalf("unexpected writer output %q", buf.String())
	}
	if res.Value != int64(42) {
		t.Fatalf("expected 42, got %#v", res.Value)
	}

	res, err = Exec(context.Background(), `limit;`, map[string]any{"limit": 1}, WithGlobals(map[string]any{"limit": 2}))
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.Value != int64(1) {
		t.Fatalf("explicit globals should win, got %#v", res.Value)
	}
}

func TestNativeRegistryFreezeAndOverridePolicy(t *testing.T) {
	quietRuntime(t)
	origOpts := GetNativeRegistryOptions()
	t.Cleanup(func() {
		SetNativeRegistryOptions(origOpts)
		_ = UnregisterNative("tmp_shout")
	})
	SetNativeRegistryOptions(NativeRegistryOptions{AllowOverride: false, Frozen: false})

	shout := func(args []interpreter.Value) (interpreter.Value, error) {
		return interpreter.NewString(interpreter.ToString(args[0]) + "!"), nil
	}
	if err := RegisterNativeE("tmp_shout", shout); err != nil {
		t.Fatalf("register should succeed: %v", err)
	}
	if err := RegisterNativeE("tmp_shout", shout); !errors.Is(err, errs.ErrRegistry) {
		t.Fatalf("expected duplicate registration error, got %v", err)
	}
	if err := RegisterNativeE("  ", shout); !errors.Is(err, errs.ErrRegistry) {
		t.Fatalf("expected invalid name error, got %v", err)
	}
	if err := RegisterNativeE("len", shout); err == nil {
		t.Fatalf("defaults should not be replaced without AllowOverride")
	}

	res, err := Exec(context.Background(), `tmp_shout("hey");`, nil)
	if err != nil {
		t.Fatalf("Exec failed: %v", err)
	}
	if res.Value != "hey!" {
		t.Fatalf("unexpected value %#v", res.Value)
	}

	FreezeNativeRegistry()
	if err := RegisterNativeE("tmp_other", shout); err == nil {
		t.Fatalf("expected frozen registry error")
	}
	if err := UnregisterNative("tmp_shout"); err == nil {
		t.Fatalf("expected frozen registry to reject unregister")
	}
	UnfreezeNativeRegistry()

	if err := UnregisterNative("tmp_shout"); err != nil {
		t.Fatalf("unregister failed: %v", err)
	}
	if _, ok := LookupNative("tmp_shout"); ok {
		t.Fatalf("expected tmp_shout to be gone")
	}
	if _, ok := LookupNative(" len "); !ok {
		t.Fatalf("expected default native len")
	}

	names := NativeNames()
	for _, want := range []string{"Number", "String", "keys", "len", "typeof"} {
		found := false
		for _, name := range names {
			if name == want {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected %s in %v", want, names)
		}
	}
}

func TestEffectiveRuntimeConfig(t *testing.T) {
	orig := GetRuntimeConfig()
	t.Cleanup(func() { SetRuntimeConfig(orig) })
	SetRuntimeConfig(RuntimeConfig{ExecTimeout: time.Second, MaxCallDepth: 10, MaxLoopIterations: 5, LogExecution: true})

	cfg := effectiveRuntimeConfig(context.Background())
	if cfg.MaxCallDepth != 10 || cfg.ExecTimeout != time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}

	depth, quiet := 3, false
	ctx := WithRuntimeConfigOverride(context.Background(), RuntimeConfigOverride{MaxCallDepth: &depth, LogExecution: &quiet})
	cfg = effectiveRuntimeConfig(ctx)
	if cfg.MaxCallDepth != 3 || cfg.LogExecution || cfg.MaxLoopIterations != 5 {
		t.Fatalf("unexpected overridden config %+v", cfg)
	}

	deadline, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if got, stop := withExecTimeout(deadline, cfg); got != deadline {
		t.Fatalf("an existing deadline should be kept")
	} else {
		stop()
	}
	if got, stop := withExecTimeout(context.Background(), RuntimeConfig{}); got != context.Background() {
		t.Fatalf("a zero timeout should not wrap the context")
	} else {
		stop()
	}
}

func TestWrapContextErr(t *testing.T) {
	if wrapContextErr(nil) != nil {
		t.Fatalf("nil should stay nil")
	}
	if err := wrapContextErr(context.DeadlineExceeded); !errors.Is(err, errs.ErrTimeout) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected timeout mapping %v", err)
	}
	if err := wrapContextErr(context.Canceled); !errors.Is(err, errs.ErrCanceled) {
		t.Fatalf("unexpected cancel mapping %v", err)
	}
	typed := errs.New(errs.KindTimeout, errs.Position{Line: 1, Column: 2}, "execution timed out").WithCause(context.DeadlineExceeded)
	if err := wrapContextErr(typed); err != typed {
		t.Fatalf("typed errors should pass through, got %v", err)
	}
	other := io.EOF
	if err := wrapContextErr(other); err != other {
		t.Fatalf("unrelated errors should pass through, got %v", err)
	}
}

func TestProgramCache(t *testing.T) {
	c, err := newProgramCache(1000, 1<<20)
	if err != nil {
		t.Fatalf("newProgramCache: %v", err)
	}
	first, err := c.compile("let a = 1;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	c.wait()
	second, err := c.compile("let a = 1;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if first != second {
		t.Fatalf("expected the cached program to be reused")
	}
	if _, err := c.compile("let = ;"); !errors.Is(err, errs.ErrSyntax) {
		t.Fatalf("expected a syntax error, got %v", err)
	}

	var none *programCache
	if _, err := none.compile("let b = 2;"); err != nil {
		t.Fatalf("a nil cache should still compile: %v", err)
	}
	none.wait()
}

func TestDetectConfigFormat(t *testing.T) {
	jsonCfg, err := DetectConfigFormat(`{"runtime": {"exec_timeout": "2s", "max_call_depth": 64}, "globals": {"limit": 3}, "server": {"address": ":9090"}}`)
	if err != nil {
		t.Fatalf("json config: %v", err)
	}
	if jsonCfg.Runtime.ExecTimeout != "2s" || jsonCfg.Server.Address != ":9090" || jsonCfg.Globals["limit"] == nil {
		t.Fatalf("unexpected json config %+v", jsonCfg)
	}
	rc, err := jsonCfg.RuntimeConfig(RuntimeConfig{MaxLoopIterations: 7, LogExecution: true})
	if err != nil {
		t.Fatalf("RuntimeConfig: %v", err)
	}
	if rc.ExecTimeout != 2*time.Second || rc.MaxCallDepth != 64 || rc.MaxLoopIterations != 7 || !rc.LogExecution {
		t.Fatalf("unexpected runtime config %+v", rc)
	}

	yamlCfg, err := DetectConfigFormat(`
runtime:
  max_loop_iterations: 100
  log_execution: false
fetch:
  timeout: 5s
  headers:
    X-Token: abc
host:
  queue_size: 8
`)
	if err != nil {
		t.Fatalf("yaml config: %v", err)
	}
	if yamlCfg.Host.QueueSize != 8 || yamlCfg.Fetch.Headers["X-Token"] != "abc" {
		t.Fatalf("unexpected yaml config %+v", yamlCfg)
	}
	rc, err = yamlCfg.RuntimeConfig(RuntimeConfig{LogExecution: true})
	if err != nil {
		t.Fatalf("RuntimeConfig: %v", err)
	}
	if rc.MaxLoopIterations != 100 || rc.LogExecution {
		t.Fatalf("unexpected runtime config %+v", rc)
	}
	opts, err := yamlCfg.Options()
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if len(opts) != 2 {
		t.Fatalf("expected fetch and queue options, got %d", len(opts))
	}

	if _, err := DetectConfigFormat(`{"runtime": `); err == nil {
		t.Fatalf("expected a detection error")
	}
	bad := Config{Runtime: RuntimeSettings{ExecTimeout: "soon"}}
	if _, err := bad.RuntimeConfig(RuntimeConfig{}); err == nil {
		t.Fatalf("expected an invalid duration error")
	}
	bad = Config{Fetch: FetchSettings{Timeout: "soon"}}
	if _, err := bad.Options(); err == nil {
		t.Fatalf("expected an invalid fetch timeout error")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "script.json")
	if err := os.WriteFile(path, []byte(`{"host": {"queue_size": 4}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Host.QueueSize != 4 {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected a missing file error")
	}
}

func newTestHost(t *testing.T, opts ...Option) *Host {
	t.Helper()
	quietRuntime(t)
	h := NewHost(opts...)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestHostLoadCallEval(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	if err := h.Load(ctx, "let count = 0; function bump(n) { count = count + n; return count; }"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	for _, tc := range []struct {
		n    int
		want int64
	}{{2, 2}, {3, 5}} {
		got, err := h.Call(ctx, "bump", tc.n)
		if err != nil {
			t.Fatalf("Call failed: %v", err)
		}
		if got != tc.want {
			t.Fatalf("expected %d, got %#v", tc.want, got)
		}
	}
	got, err := h.Eval(ctx, "count * 2;")
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if got != int64(10) {
		t.Fatalf("expected 10, got %#v", got)
	}
	globals, err := h.Globals(ctx)
	if err != nil {
		t.Fatalf("Globals failed: %v", err)
	}
	if !reflect.DeepEqual(globals, map[string]any{"count": int64(5)}) {
		t.Fatalf("unexpected globals %#v", globals)
	}
	if _, err := h.Call(ctx, "nope"); !errors.Is(err, errs.ErrReference) {
		t.Fatalf("expected ReferenceError, got %v", err)
	}
	if h.ID() == "" {
		t.Fatalf("expected a host id")
	}
}

func TestHostSerializesConcurrentCalls(t *testing.T) {
	h := newTestHost(t)
	ctx := context.Background()
	if err := h.Load(ctx, "let count = 0; function bump() { count++; return count; }"); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.Call(ctx, "bump"); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Fatalf("concurrent call failed: %v", err)
	}
	got, err := h.Eval(ctx, "count;")
	if err != nil {
		t.Fatalf("Eval failed: %v", err)
	}
	if got != int64(20) {
		t.Fatalf("expected 20, got %#v", got)
	}
}

func newFetchServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/item":
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"name": "widget", "qty": 3}`)
		case "/echo":
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", r.Header.Get("Content-Type"))
			w.Header().Set("X-Method", r.Method)
			_, _ = w.Write(body)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHostFetchDeliversCallbacks(t *testing.T) {
	srv := newFetchServer(t)
	h := newTestHost(t, WithGlobals(map[string]any{"url": srv.URL}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := h.Load(ctx, `
let name = "";
let status = 0;
let echoed = "";
let method = "";
fetch(url + "/item", function (res) {
  status = res.status;
  name = res.json.name;
  log("got " + res.json.qty);
});
fetch(url + "/echo", {method: "POST", body: {a: 1}}, function (res) {
  echoed = res.body;
  method = res.headers["x-method"];
});
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	globals, err := h.Globals(ctx)
	if err != nil {
		t.Fatalf("Globals failed: %v", err)
	}
	if globals["name"] != "widget" || globals["status"] != int64(200) {
		t.Fatalf("unexpected globals %#v", globals)
	}
	if globals["echoed"] != `{"a":1}` || globals["method"] != http.MethodPost {
		t.Fatalf("unexpected echo %#v", globals)
	}
	if !reflect.DeepEqual(h.Output(), []string{"got 3"}) {
		t.Fatalf("unexpected output %#v", h.Output())
	}
}

func TestHostFetchFailures(t *testing.T) {
	srv := newFetchServer(t)
	closed := httptest.NewServer(http.NotFoundHandler())
	closedURL := closed.URL
	closed.Close()

	h := newTestHost(t, WithGlobals(map[string]any{"url": srv.URL, "deadURL": closedURL}))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := h.Load(ctx, `
let failed = false;
fetch(deadURL, function (res, err) {
  failed = typeof(res) == "undefined" && typeof(err) == "string";
});
`)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got, _ := h.Eval(ctx, "failed;"); got != true {
		t.Fatalf("expected the callback to see the failure, got %#v", got)
	}

	if err := h.Load(ctx, `fetch(url + "/item", function (res) { missing(); });`); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := h.Wait(ctx); !errors.Is(err, errs.ErrReference) {
		t.Fatalf("expected the callback error from Wait, got %v", err)
	}
	if err := h.Wait(ctx); err != nil {
		t.Fatalf("errors should be reported once, got %v", err)
	}

	for _, source := range []string{
		`fetch(1, function () {});`,
		`fetch(url, 2);`,
		`fetch(url, "opts", function () {});`,
		`fetch(url, {body: 1}, function () {});`,
		`fetch(url);`,
	} {
		if _, err := h.Eval(ctx, source); !errors.Is(err, errs.ErrType) {
			t.Errorf("%q: expected TypeError, got %v", source, err)
		}
	}
}

func TestHostClose(t *testing.T) {
	h := newTestHost(t)
	canceled, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.Eval(canceled, "1;"); !errors.Is(err, errs.ErrCanceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if _, err := h.Call(context.Background(), "anything"); !errors.Is(err, ErrHostClosed) {
		t.Fatalf("expected ErrHostClosed, got %v", err)
	}
	if !errors.Is(ErrHostClosed, errs.ErrHost) {
		t.Fatalf("ErrHostClosed should be a HostError")
	}
}
