/*
Package formula evaluates the expressions of formula components.

PURPOSE:
  A formula component carries an arithmetic expression over context values,
  for example "base_amount * min(plan_completion / 100, 1.5)". Evaluator
  compiles each expression once with govaluate and caches it.

VARIABLES:
  Every context value is available by name, plus base_amount. A variable
  the context lacks reads as 0, matching the engine's missing-key rule.

FUNCTIONS:
  min(a, b, ...), max(a, b, ...), abs(x), round(x, places)
  Conditions use the ternary form: plan_completion >= 100 ? 1.2 : 1

RESULTS:
  Numbers come back as decimals. A boolean result maps to 1 or 0. Anything
  else, and NaN or infinity, is an error; the calculator then falls back to
  the base amount and records a warning.
*/
package formula

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/casbin/govaluate"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyExpression = errors.New("formula: empty expression")
	ErrNotANumber      = errors.New("formula: result is not a finite number")
)

// Evaluator implements motivation.FormulaEvaluator. Safe for concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*govaluate.EvaluableExpression
}

func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*govaluate.EvaluableExpression)}
}

// Compile parses an expression without evaluating it, so schemes can be
// checked when they are saved.
func (e *Evaluator) Compile(expression string) error {
	_, err := e.compiled(expression)
	return err
}

// Vars lists the variables an expression reads.
func (e *Evaluator) Vars(expression string) ([]string, error) {
	expr, err := e.compiled(expression)
	if err != nil {
		return nil, err
	}
	return expr.Vars(), nil
}

func (e *Evaluator) Evaluate(expression string, vars map[string]decimal.Decimal) (decimal.Decimal, error) {
	expr, err := e.compiled(expression)
	if err != nil {
		return decimal.Zero, err
	}

	params := make(map[string]interface{}, len(vars))
	for _, name := range expr.Vars() {
		params[name] = 0.0
	}
	for k, v := range vars {
		params[k] = v.InexactFloat64()
	}

	out, err := expr.Evaluate(params)
	if err != nil {
		return decimal.Zero, fmt.Errorf("formula %q: %w", expression, err)
	}
	return toDecimal(out)
}

func (e *Evaluator) compiled(expression string) (*govaluate.EvaluableExpression, error) {
	if expression == "" {
		return nil, ErrEmptyExpression
	}
	e.mu.RLock()
	expr, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return expr, nil
	}

	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, functions)
	if err != nil {
		return nil, fmt.Errorf("formula %q: %w", expression, err)
	}
	e.mu.Lock()
	e.cache[expression] = expr
	e.mu.Unlock()
	return expr, nil
}

func toDecimal(v interface{}) (decimal.Decimal, error) {
	switch x := v.(type) {
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return decimal.Zero, ErrNotANumber
		}
		return decimal.NewFromFloat(x), nil
	case bool:
		if x {
			return decimal.NewFromInt(1), nil
		}
		return decimal.Zero, nil
	default:
		return decimal.Zero, fmt.Errorf("%w: got %T", ErrNotANumber, v)
	}
}

// =============================================================================
// FUNCTIONS
// =============================================================================

var functions = map[string]govaluate.ExpressionFunction{
	"min": func(args ...interface{}) (interface{}, error) {
		return fold("min", args, math.Min)
	},
	"max": func(args ...interface{}) (interface{}, error) {
		return fold("max", args, math.Max)
	},
	"abs": func(args ...interface{}) (interface{}, error) {
		x, err := oneNumber("abs", args)
		if err != nil {
			return nil, err
		}
		return math.Abs(x), nil
	},
	"round": func(args ...interface{}) (interface{}, error) {
		if len(args) != 2 {
			return nil, fmt.Errorf("round: want 2 arguments, got %d", len(args))
		}
		x, ok1 := args[0].(float64)
		places, ok2 := args[1].(float64)
		if !ok1 || !ok2 {
			return nil, errors.New("round: arguments must be numbers")
		}
		return decimal.NewFromFloat(x).Round(int32(places)).InexactFloat64(), nil
	},
}

func fold(name string, args []interface{}, f func(a, b float64) float64) (interface{}, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: no arguments", name)
	}
	acc, ok := args[0].(float64)
	if !ok {
		return nil, fmt.Errorf("%s: arguments must be numbers", name)
	}
	for _, a := range args[1:] {
		x, ok := a.(float64)
		if !ok {
			return nil, fmt.Errorf("%s: arguments must be numbers", name)
		}
		acc = f(acc, x)
	}
	return acc, nil
}

func oneNumber(name string, args []interface{}) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("%s: want 1 argument, got %d", name, len(args))
	}
	x, ok := args[0].(float64)
	if !ok {
		return 0, fmt.Errorf("%s: argument must be a number", name)
	}
	return x, nil
}
