package script

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oarkflow/script/errs"
	"github.com/oarkflow/script/interpreter"
)

type RuntimeConfig struct {
	ExecTimeout       time.Duration
	MaxCallDepth      int
	MaxLoopIterations int
	LogExecution      bool
}

var (
	runtimeConfigMu sync.RWMutex
	runtimeConfig   = RuntimeConfig{
		ExecTimeout:       30 * time.Second,
		MaxCallDepth:      interpreter.DefaultMaxCallDepth,
		MaxLoopIterations: 0,
		LogExecution:      true,
	}
)

type runtimeConfigContextKey struct{}

type RuntimeConfigOverride struct {
	ExecTimeout       *time.Duration
	MaxCallDepth      *int
	MaxLoopIterations *int
	LogExecution      *bool
}

func SetRuntimeConfig(cfg RuntimeConfig) {
	runtimeConfigMu.Lock()
	defer runtimeConfigMu.Unlock()
	runtimeConfig = cfg
}

func GetRuntimeConfig() RuntimeConfig {
	runtimeConfigMu.RLock()
	defer runtimeConfigMu.RUnlock()
	return runtimeConfig
}

func WithRuntimeConfigOverride(ctx context.Context, override RuntimeConfigOverride) context.Context {
	return context.WithValue(ctx, runtimeConfigContextKey{}, override)
}

func effectiveRuntimeConfig(ctx context.Context) RuntimeConfig {
	cfg := GetRuntimeConfig()
	ov, ok := ctx.Value(runtimeConfigContextKey{}).(RuntimeConfigOverride)
	if !ok {
		return cfg
	}
	if ov.ExecTimeout != nil {
		cfg.ExecTimeout = *ov.ExecTimeout
	}
	if ov.MaxCallDepth != nil {
		cfg.MaxCallDepth = *ov.MaxCallDepth
	}
	if ov.MaxLoopIterations != nil {
		cfg.MaxLoopIterations = *ov.MaxLoopIterations
	}
	if ov.LogExecution != nil {
		cfg.LogExecution = *ov.LogExecution
	}
	return cfg
}

func withExecTimeout(ctx context.Context, cfg RuntimeConfig) (context.Context, context.CancelFunc) {
	if cfg.ExecTimeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, cfg.ExecTimeout)
}

func (cfg RuntimeConfig) programOptions() []interpreter.Option {
	return []interpreter.Option{
		interpreter.WithMaxCallDepth(cfg.MaxCallDepth),
		interpreter.WithMaxLoopIterations(cfg.MaxLoopIterations),
	}
}

func wrapContextErr(err error) error {
	if err == nil {
		return nil
	}
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.New(errs.KindTimeout, errs.Position{}, "execution timed out").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.New(errs.KindCanceled, errs.Position{}, "execution canceled").WithCause(err)
	}
	return err
}
