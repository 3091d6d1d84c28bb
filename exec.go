package script

import (
	"context"
	"time"

	"github.com/oarkflow/xid"

	"github.com/oarkflow/script/interpreter"
	"github.com/oarkflow/script/pkg/bridge"
)

type Result struct {
	ID       string         `json:"id"`
	Value    any            `json:"value"`
	Globals  map[string]any `json:"globals"`
	Output   []string       `json:"output"`
	Duration time.Duration  `json:"duration"`
}

// Exec compiles and runs source in a fresh program with globals bound.
// The Result is returned even on failure and holds the output produced so far.
func Exec(ctx context.Context, source string, globals map[string]any, opts ...Option) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	o := newOptions(opts...)
	cfg := effectiveRuntimeConfig(ctx)
	ctx, cancel := withExecTimeout(ctx, cfg)
	defer cancel()

	start := time.Now()
	result := &Result{ID: xid.New().String()}
	sink := newOutputSink(o.output)
	logger := o.logger

	finish := func(err error) (*Result, error) {
		result.Output = sink.Lines()
		result.Duration = time.Since(start)
		if cfg.LogExecution {
			if err != nil {
				logger.Error().Str("id", result.ID).Dur("duration", result.Duration).Err(err).Msg("script failed")
			} else {
				logger.Info().Str("id", result.ID).Int("output_lines", len(result.Output)).Dur("duration", result.Duration).Msg("script finished")
			}
		}
		return result, err
	}

	program, err := o.programCache().compile(source)
	if err != nil {
		return finish(err)
	}
	p := interpreter.NewProgram(program, cfg.programOptions()...)
	jsonGlobal := o.install(p, sink)
	for _, m := range []map[string]any{o.globals, globals} {
		for name, val := range bridge.FromGoMap(m) {
			p.SetGlobal(name, val)
		}
	}

	value, err := p.Exec(ctx, program)
	if err != nil {
		return finish(wrapContextErr(err))
	}
	if result.Value, err = bridge.ToGo(value); err != nil {
		return finish(err)
	}
	if result.Globals, err = snapshot(p, jsonGlobal); err != nil {
		return finish(err)
	}
	return finish(nil)
}

// snapshot converts the top-level bindings, leaving out the built-in JSON
// object unless the script replaced it.
func snapshot(p *interpreter.Program, jsonGlobal *interpreter.Object) (map[string]any, error) {
	bindings := p.Bindings()
	if v, ok := bindings["JSON"]; ok && v == interpreter.Value(jsonGlobal) {
		delete(bindings, "JSON")
	}
	return bridge.ToGoMap(bindings)
}
