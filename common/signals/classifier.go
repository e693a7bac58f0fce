// Package signals is the pipeline that turns notable events, internal
// (self-heal failure) or external (dangerous-command logs), into
// queryable Signal rows gated by review status. Classification is
// rule-driven: CEL expressions over the raw record decide severity.
package signals

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/document"
	"github.com/minorumochizuki2015-ship-it/agent-missions-hub/common/models"
)

// Rule assigns a severity to rows matching a CEL expression. The row
// is bound to the `row` variable.
type Rule struct {
	Name     string
	Expr     string
	Severity models.Severity
}

// DefaultRules maps the well-known dangerous-log events to severities
func DefaultRules() []Rule {
	return []Rule{
		{Name: "dangerous-command", Expr: `row.event == "dangerous_command"`, Severity: models.SeverityWarning},
		{Name: "approval-required", Expr: `row.event == "approval_required"`, Severity: models.SeverityInfo},
		{Name: "failing-test", Expr: `row.event == "failing_test"`, Severity: models.SeverityError},
	}
}

// Classifier evaluates rules against rows, caching compiled programs
// so repeated imports pay compilation once per expression
type Classifier struct {
	rules []Rule

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewClassifier builds a classifier; no rules means DefaultRules
func NewClassifier(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{
		rules: rules,
		cache: make(map[string]cel.Program),
	}
}

// Classify returns the severity of the first matching rule. The second
// return is false when no rule matches; such rows are not importable.
func (c *Classifier) Classify(row document.Doc) (models.Severity, bool) {
	for _, rule := range c.rules {
		matched, err := c.evaluate(rule.Expr, row)
		if err != nil {
			// a broken rule never blocks the others
			continue
		}
		if matched {
			return rule.Severity, true
		}
	}
	return "", false
}

// ClassifyType resolves a severity for a bare signal type by running
// the rules against a synthetic {event: type} row. Unmatched types
// default to info.
func (c *Classifier) ClassifyType(signalType string) models.Severity {
	if severity, ok := c.Classify(document.Doc{"event": signalType}); ok {
		return severity
	}
	return models.SeverityInfo
}

// evaluate runs one expression against a row
func (c *Classifier) evaluate(expr string, row document.Doc) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{"row": map[string]any(row)})
	if err != nil {
		// missing fields surface as evaluation errors; treat as no match
		return false, nil
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule expression did not return boolean, got %T", out.Value())
	}
	return result, nil
}

// program returns the compiled program for expr, compiling and caching
// on first use
func (c *Classifier) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, exists := c.cache[expr]
	c.mu.RUnlock()
	if exists {
		return prg, nil
	}

	env, err := cel.NewEnv(cel.Variable("row", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to create rule env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %q: %w", expr, issues.Err())
	}

	prg, err = env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule program: %w", err)
	}

	c.mu.Lock()
	c.cache[expr] = prg
	c.mu.Unlock()
	return prg, nil
}

// CacheSize returns the number of compiled expressions held
func (c *Classifier) CacheSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
