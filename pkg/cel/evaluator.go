package cel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"
)

// Input is the view of a triggering event exposed to template conditions.
type Input struct {
	TenantID      string
	Subject       string
	Verb          string
	Context       map[string]string
	IdentityKey   string
	IdentityValue string
	OccurredAt    time.Time
}

func (in Input) vars() map[string]interface{} {
	ctx := in.Context
	if ctx == nil {
		ctx = map[string]string{}
	}
	return map[string]interface{}{
		"tenant_id": in.TenantID,
		"subject":   in.Subject,
		"verb":      in.Verb,
		"context":   ctx,
		"identity": map[string]string{
			"key":   in.IdentityKey,
			"value": in.IdentityValue,
		},
		"occurred_at": in.OccurredAt,
	}
}

// Evaluator compiles and runs boolean template conditions. Compiled programs
// are cached by expression text and safe for concurrent use.
type Evaluator struct {
	env      *cel.Env
	programs sync.Map
}

func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("tenant_id", cel.StringType),
		cel.Variable("subject", cel.StringType),
		cel.Variable("verb", cel.StringType),
		cel.Variable("context", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("identity", cel.MapType(cel.StringType, cel.StringType)),
		cel.Variable("occurred_at", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Evaluator{env: env}, nil
}

// ValidateCondition checks that expression compiles and yields a bool.
func (e *Evaluator) ValidateCondition(expression string) error {
	_, err := e.compile(expression)
	return err
}

func (e *Evaluator) compile(expression string) (cel.Program, error) {
	if cached, ok := e.programs.Load(expression); ok {
		return cached.(cel.Program), nil
	}

	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL expression validation failed: %w", issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("condition must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}

	actual, _ := e.programs.LoadOrStore(expression, program)
	return actual.(cel.Program), nil
}

func (e *Evaluator) EvaluateCondition(ctx context.Context, expression string, in Input) (bool, error) {
	program, err := e.compile(expression)
	if err != nil {
		return false, err
	}

	result, _, err := program.ContextEval(ctx, in.vars())
	if err != nil {
		return false, fmt.Errorf("failed to evaluate CEL expression: %w", err)
	}

	boolVal, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("CEL expression did not return bool, got %T", result.Value())
	}

	return boolVal, nil
}
