// Package advice picks the lifestyle recommendation blocks shown next to a prediction.
//
// Each rule holds a CEL condition over the patient's measurements and the predicted probability;
// when the condition holds the elevated block is shown, otherwise the standard one.
package advice

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// Measurements are the inputs the rules can see.
type Measurements struct {
	Cholesterol  int
	MaxHeartRate int
	RestingBP    int
	Probability  float64
}

type Rule struct {
	Category  string
	Title     string
	Condition string
	Elevated  []string
	Standard  []string
}

// Section is one rendered recommendation block.
type Section struct {
	Category string   `json:"category"`
	Title    string   `json:"title"`
	Elevated bool     `json:"elevated"`
	Items    []string `json:"items"`
}

var DefaultRules = []Rule{
	{
		Category:  "diet",
		Title:     "Diet Plan",
		Condition: "cholesterol > 240 || probability > 0.5",
		Elevated: []string{
			"Reduce saturated fats: Choose grilled or steamed foods.",
			"Increase fiber: Eat oats, apples, and broccoli.",
			"Limit sodium: Lower salt to manage blood pressure.",
		},
		Standard: []string{
			"Balanced diet: Include whole grains, lean proteins, avocados.",
			"Limit sugar: Avoid sugary drinks and snacks.",
			"Healthy fats: Use olive oil or nuts moderately.",
		},
	},
	{
		Category:  "exercise",
		Title:     "Exercise Routine",
		Condition: "max_heart_rate < 120 || probability > 0.5",
		Elevated: []string{
			"Low-intensity cardio: 30 min brisk walk, 5x/week.",
			"Consult doctor before intense exercise.",
			"Flexibility: Daily yoga or stretching.",
		},
		Standard: []string{
			"Cardio: 150 min/week jogging or cycling.",
			"Strength: 2-3 sessions/week for major muscles.",
			"Stay active: Walk or take stairs.",
		},
	},
	{
		Category:  "lifestyle",
		Title:     "Lifestyle Changes",
		Condition: "resting_bp > 140 || probability > 0.5",
		Elevated: []string{
			"Manage stress: Meditate or practice yoga.",
			"Monitor BP: Regular check-ups, low-salt diet.",
			"Avoid smoking: Seek support to quit.",
		},
		Standard: []string{
			"Quit smoking: Improve heart health.",
			"Sleep: Aim for 7-8 hours nightly.",
			"Stay social: Engage in hobbies or community.",
		},
	},
}

type compiledRule struct {
	rule    Rule
	program cel.Program
}

// Selector is compiled once and safe for concurrent use.
type Selector struct {
	rules []compiledRule
}

func NewSelector(rules []Rule) (*Selector, error) {
	env, err := cel.NewEnv(
		cel.Variable("cholesterol", cel.IntType),
		cel.Variable("max_heart_rate", cel.IntType),
		cel.Variable("resting_bp", cel.IntType),
		cel.Variable("probability", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	s := &Selector{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("compile %s rule: %w", r.Category, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fmt.Errorf("%s rule must yield a bool, got %v", r.Category, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("program for %s rule: %w", r.Category, err)
		}
		s.rules = append(s.rules, compiledRule{rule: r, program: prg})
	}
	return s, nil
}

// Select returns one section per rule, in rule order.
func (s *Selector) Select(m Measurements) ([]Section, error) {
	vars := map[string]any{
		"cholesterol":    int64(m.Cholesterol),
		"max_heart_rate": int64(m.MaxHeartRate),
		"resting_bp":     int64(m.RestingBP),
		"probability":    m.Probability,
	}

	out := make([]Section, 0, len(s.rules))
	for _, cr := range s.rules {
		val, _, err := cr.program.Eval(vars)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s rule: %w", cr.rule.Category, err)
		}
		elevated := val == types.True

		items := cr.rule.Standard
		if elevated {
			items = cr.rule.Elevated
		}
		out = append(out, Section{
			Category: cr.rule.Category,
			Title:    cr.rule.Title,
			Elevated: elevated,
			Items:    append([]string(nil), items...),
		})
	}
	return out, nil
}
