package preamble

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type ruleFile struct {
	Rules []struct {
		Name    string `yaml:"name"`
		Pattern string `yaml:"pattern"`
		Action  Action `yaml:"action"`
	} `yaml:"rules"`
}

// ParseRules decodes a YAML rule table:
//
//	rules:
//	  - name: sign-off
//	    pattern: 'cheers\b.*'
//	    action: drop_line
//
// A missing action defaults to drop_line.
func ParseRules(data []byte) ([]Rule, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode preamble rules: %w", err)
	}
	rules := make([]Rule, 0, len(f.Rules))
	for i, r := range f.Rules {
		if r.Pattern == "" {
			return nil, fmt.Errorf("preamble rule %d (%q) has no pattern", i, r.Name)
		}
		action := r.Action
		if action == "" {
			action = ActionDropLine
		}
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("custom-%d", i)
		}
		rule, err := NewRule(name, r.Pattern, action)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadRules reads a YAML rule table from path.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read preamble rules %s: %w", path, err)
	}
	return ParseRules(data)
}
