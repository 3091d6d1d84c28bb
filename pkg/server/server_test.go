package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/oarkflow/json"

	"github.com/oarkflow/script"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	orig := script.GetRuntimeConfig()
	t.Cleanup(func() { script.SetRuntimeConfig(orig) })
	cfg := orig
	cfg.LogExecution = false
	script.SetRuntimeConfig(cfg)
	return NewServer(Config{Version: "test", DisableRequestLog: true})
}

func doRequest(t *testing.T, s *Server, method, path, body string, out any) int {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
	}
	return res.StatusCode
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	var body map[string]any
	if code := doRequest(t, s, http.MethodGet, "/api/health", "", &body); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if body["status"] != "healthy" || body["version"] != "test" {
		t.Fatalf("unexpected health body %v", body)
	}
}

func TestRun(t *testing.T) {
	s := newTestServer(t)

	var ok RunResponse
	code := doRequest(t, s, http.MethodPost, "/api/run", `{"source": "let x = 2; log(x * 3); x + 1;"}`, &ok)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if ok.Value != float64(3) || len(ok.Output) != 1 || ok.Output[0] != "6" || ok.ID == "" {
		t.Fatalf("unexpected run response %+v", ok)
	}

	var failed RunResponse
	code = doRequest(t, s, http.MethodPost, "/api/run", `{"source": "1 / 0;"}`, &failed)
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if len(failed.Errors) != 1 || failed.Errors[0].Kind != "ArithmeticError" || failed.Errors[0].Line != 1 {
		t.Fatalf("unexpected failure response %+v", failed)
	}

	var withGlobals RunResponse
	code = doRequest(t, s, http.MethodPost, "/api/run", `{"source": "n * 2;", "globals": {"n": 4}}`, &withGlobals)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if withGlobals.Value != float64(8) {
		t.Fatalf("unexpected value %#v", withGlobals.Value)
	}

	var bad map[string]any
	if code := doRequest(t, s, http.MethodPost, "/api/run", `{"source": "  "}`, &bad); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty source, got %d", code)
	}
	if bad["error"] != "Source cannot be empty" {
		t.Fatalf("unexpected error body %v", bad)
	}
	if code := doRequest(t, s, http.MethodPost, "/api/run", `not json`, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", code)
	}

	var runs []ExecutionSummary
	if code := doRequest(t, s, http.MethodGet, "/api/runs", "", &runs); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if len(runs) != 3 || runs[0].Status != "completed" || runs[1].Status != "failed" {
		t.Fatalf("unexpected runs %+v", runs)
	}

	var one ExecutionSummary
	if code := doRequest(t, s, http.MethodGet, "/api/runs/"+ok.ID, "", &one); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if one.ID != ok.ID || one.OutputLines != 1 {
		t.Fatalf("unexpected run %+v", one)
	}
	if code := doRequest(t, s, http.MethodGet, "/api/runs/missing", "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestRunHistoryIsBounded(t *testing.T) {
	s := newTestServer(t)
	s.config.HistorySize = 2
	for i := 0; i < 3; i++ {
		s.record(ExecutionSummary{ID: string(rune('a' + i))})
	}
	if len(s.executions) != 2 || s.executions[0].ID != "b" {
		t.Fatalf("unexpected history %+v", s.executions)
	}
}

func TestParseAndTokens(t *testing.T) {
	s := newTestServer(t)

	var valid ParseResponse
	if code := doRequest(t, s, http.MethodPost, "/api/parse", `{"source": "let x = 1;"}`, &valid); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !valid.Valid || valid.AST == "" || len(valid.Errors) != 0 {
		t.Fatalf("unexpected parse response %+v", valid)
	}

	var invalid ParseResponse
	if code := doRequest(t, s, http.MethodPost, "/api/parse", `{"source": "let = 1;"}`, &invalid); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if invalid.Valid || len(invalid.Errors) == 0 || invalid.Errors[0].Kind != "SyntaxError" {
		t.Fatalf("unexpected parse response %+v", invalid)
	}

	var tokens map[string]string
	if code := doRequest(t, s, http.MethodPost, "/api/tokens", `{"source": "let x"}`, &tokens); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(tokens["tokens"], "IDENT x") {
		t.Fatalf("unexpected tokens %q", tokens["tokens"])
	}
}
