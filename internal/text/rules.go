package text

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidRules is returned when a rules file does not have the expected
// shape.
var ErrInvalidRules = errors.New("invalid replacement rules")

// Rule replaces every occurrence of From with To.
type Rule struct {
	From string `yaml:"from" mapstructure:"from"`
	To   string `yaml:"to" mapstructure:"to"`
}

type rulesFile struct {
	Replacements *[]map[string]*string `yaml:"replacements"`
}

// LoadRules reads replacement rules from a YAML or JSON file of the form
// {"replacements": [{"from": "...", "to": "..."}]}.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read replacement rules: %w", err)
	}
	return ParseRules(data)
}

// ParseRules parses the contents of a rules file.
func ParseRules(data []byte) ([]Rule, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if f.Replacements == nil {
		return nil, fmt.Errorf("%w: missing \"replacements\" key", ErrInvalidRules)
	}

	rules := make([]Rule, 0, len(*f.Replacements))
	for i, entry := range *f.Replacements {
		from, to := entry["from"], entry["to"]
		if from == nil || to == nil {
			return nil, fmt.Errorf("%w: rule %d needs \"from\" and \"to\"", ErrInvalidRules, i)
		}
		if *from == "" {
			return nil, fmt.Errorf("%w: rule %d has an empty \"from\"", ErrInvalidRules, i)
		}
		rules = append(rules, Rule{From: *from, To: *to})
	}
	return rules, nil
}

// applyRules runs the rules in order.
func applyRules(s string, rules []Rule) string {
	for _, r := range rules {
		if r.From == "" {
			continue
		}
		s = strings.ReplaceAll(s, r.From, r.To)
	}
	return s
}
