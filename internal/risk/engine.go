package risk

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/harrier/internal/domain"
)

// FlagRule is an analyst-defined predicate over cluster or ring
// statistics, written as a CEL expression returning bool. Examples:
//
//	fraud_rate > 0.5 && unique_users < size
//	density > 0.8 && fraud_count >= 3
type FlagRule struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Expression  string `json:"expression"`
}

// Engine compiles flag rules once and evaluates them against the
// statistics of each cluster or ring. Evaluation is read-only and
// safe for concurrent use after loading.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled []compiledRule
}

type compiledRule struct {
	rule    FlagRule
	program cel.Program
}

// Stats is the variable set visible to flag expressions. Graph-only
// metrics are zero when evaluating a cluster.
type Stats struct {
	Size                int
	FraudCount          int
	FraudRate           float64
	UniqueUsers         int
	Density             float64
	AvgDegreeCentrality float64
}

// ClusterStats adapts a cluster analysis for rule evaluation.
// Graph-only variables are zero.
func ClusterStats(c domain.ClusterAnalysis) Stats {
	return Stats{
		Size:        c.Size,
		FraudCount:  c.FraudCount,
		FraudRate:   c.FraudRate,
		UniqueUsers: c.UniqueUsers,
	}
}

// RingStats adapts a fraud ring for rule evaluation.
func RingStats(r domain.FraudRing) Stats {
	fraudRate := 0.0
	if r.Size > 0 {
		fraudRate = float64(r.FraudCount) / float64(r.Size)
	}
	return Stats{
		Size:                r.Size,
		FraudCount:          r.FraudCount,
		FraudRate:           fraudRate,
		UniqueUsers:         r.UniqueUsers,
		Density:             r.Density,
		AvgDegreeCentrality: r.AvgDegreeCentrality,
	}
}

// NewEngine creates a flag-rule engine with the statistics variables
// declared.
func NewEngine() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("size", cel.IntType),
		cel.Variable("fraud_count", cel.IntType),
		cel.Variable("fraud_rate", cel.DoubleType),
		cel.Variable("unique_users", cel.IntType),
		cel.Variable("density", cel.DoubleType),
		cel.Variable("avg_degree_centrality", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Engine{env: env}, nil
}

// LoadRules compiles and loads the given rules, replacing any
// previously loaded set. A rule that does not compile to a boolean
// expression rejects the whole load.
func (e *Engine) LoadRules(rules []FlagRule) error {
	compiled := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		ast, issues := e.env.Compile(r.Expression)
		if issues != nil && issues.Err() != nil {
			return fmt.Errorf("failed to compile flag rule %s: %w", r.Name, issues.Err())
		}
		if ast.OutputType() != cel.BoolType {
			return fmt.Errorf("flag rule %s: expression must return bool, got %s", r.Name, ast.OutputType())
		}
		program, err := e.env.Program(ast)
		if err != nil {
			return fmt.Errorf("failed to create program for flag rule %s: %w", r.Name, err)
		}
		compiled = append(compiled, compiledRule{rule: r, program: program})
	}

	e.mu.Lock()
	e.compiled = compiled
	e.mu.Unlock()
	return nil
}

// Rules returns the loaded rules in load order.
func (e *Engine) Rules() []FlagRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]FlagRule, 0, len(e.compiled))
	for _, r := range e.compiled {
		out = append(out, r.rule)
	}
	return out
}

// RuleCount returns the number of loaded rules.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled)
}

// Evaluate returns the names of the rules matching the given
// statistics, in load order. Evaluation errors skip the rule rather
// than failing the batch.
func (e *Engine) Evaluate(stats Stats) []string {
	e.mu.RLock()
	rules := e.compiled
	e.mu.RUnlock()

	if len(rules) == 0 {
		return nil
	}

	activation := map[string]any{
		"size":                  stats.Size,
		"fraud_count":           stats.FraudCount,
		"fraud_rate":            stats.FraudRate,
		"unique_users":          stats.UniqueUsers,
		"density":               stats.Density,
		"avg_degree_centrality": stats.AvgDegreeCentrality,
	}

	var matched []string
	for _, r := range rules {
		out, _, err := r.program.Eval(activation)
		if err != nil {
			continue
		}
		if toBool(out) {
			matched = append(matched, r.rule.Name)
		}
	}
	return matched
}

func toBool(val ref.Val) bool {
	if b, ok := val.(types.Bool); ok {
		return bool(b)
	}
	return false
}
