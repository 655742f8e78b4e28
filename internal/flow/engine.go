// Package flow executes the steps of a portal flow. Step execution is a
// deterministic stub; only the `when` guards are evaluated for real.
package flow

import (
	"context"
	"fmt"

	"rcmos/internal/domain"
	"rcmos/internal/logger"

	"github.com/expr-lang/expr"
)

// Executor runs a flow's steps and returns the flow output.
type Executor interface {
	Execute(ctx context.Context, flowID string, steps []domain.Step, input map[string]any) (map[string]any, error)
}

type engine struct {
	logger logger.Logger
}

func NewEngine(log logger.Logger) Executor {
	return &engine{
		logger: log.With(logger.String("component", "flow_engine")),
	}
}

func (e *engine) Execute(ctx context.Context, flowID string, steps []domain.Step, input map[string]any) (map[string]any, error) {
	executed := 0
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		run, err := e.shouldRun(step, i, input)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if !run {
			e.logger.Debug("step skipped",
				logger.String("flow_id", flowID),
				logger.Int("step", i))
			continue
		}
		executed++
	}

	e.logger.Info("flow executed",
		logger.String("flow_id", flowID),
		logger.Int("steps", len(steps)),
		logger.Int("executed", executed))

	return map[string]any{
		"flow_id":  flowID,
		"steps":    len(steps),
		"executed": executed,
		"status":   "ok",
	}, nil
}

// shouldRun evaluates the optional `when` guard of a step.
func (e *engine) shouldRun(step domain.Step, index int, input map[string]any) (bool, error) {
	raw, ok := step["when"]
	if !ok || raw == nil {
		return true, nil
	}
	expression, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("when must be a string, got %T", raw)
	}
	if expression == "" {
		return true, nil
	}

	if input == nil {
		input = map[string]any{}
	}
	env := map[string]any{
		"input": input,
		"index": index,
		"op":    step["op"],
	}

	program, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("invalid expression: %w", err)
	}

	result, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("expression evaluation failed: %w", err)
	}

	passed, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return boolean: %T", result)
	}
	return passed, nil
}
