package chat

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Intent is the classification bucket assigned to a prompt. It determines the
// task's step plan and the shape of its final response.
type Intent string

const (
	IntentChart   Intent = "chart"
	IntentMap     Intent = "map"
	IntentRAG     Intent = "rag"
	IntentGeneral Intent = "general"
)

// Rule maps a set of keywords to an intent. Rules are evaluated in order and
// the first rule with any matching keyword wins, so rule order is the
// priority order.
type Rule struct {
	Intent   Intent   `yaml:"intent"`
	Keywords []string `yaml:"keywords"`
}

// DefaultRules returns the built-in rule table. Chart is checked before map,
// map before rag; prompts matching nothing classify as general.
func DefaultRules() []Rule {
	return []Rule{
		{Intent: IntentChart, Keywords: []string{"trend", "趨勢", "圖", "chart", "sales"}},
		{Intent: IntentMap, Keywords: []string{"map", "地圖", "分佈", "distribution"}},
		{Intent: IntentRAG, Keywords: []string{"policy", "document", "規定", "文件", "rag", "search"}},
	}
}

// Classifier assigns intents to prompts by case-insensitive substring
// matching against an ordered rule table.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a Classifier. A nil or empty rule slice uses
// DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Classify returns the intent of prompt. Classification is deterministic:
// the first rule (in table order) with a matching keyword wins, and prompts
// matching no rule return IntentGeneral.
func (c *Classifier) Classify(prompt string) Intent {
	lower := strings.ToLower(prompt)
	for _, rule := range c.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return rule.Intent
			}
		}
	}
	return IntentGeneral
}

type rulesFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads an ordered rule table from a YAML file:
//
//	rules:
//	  - intent: chart
//	    keywords: [trend, chart, sales]
//	  - intent: map
//	    keywords: [map, distribution]
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s contains no rules", path)
	}

	for i, r := range f.Rules {
		switch r.Intent {
		case IntentChart, IntentMap, IntentRAG, IntentGeneral:
		default:
			return nil, fmt.Errorf("rule %d: unknown intent %q", i, r.Intent)
		}
		if len(r.Keywords) == 0 {
			return nil, fmt.Errorf("rule %d (%s): no keywords", i, r.Intent)
		}
	}

	return f.Rules, nil
}
