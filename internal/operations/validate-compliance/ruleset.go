package validatecompliance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"grant-engine/internal/common/errors"
	"grant-engine/internal/models"
)

// ruleSetSchema guards rule-set files at load time: a malformed definition is
// rejected on startup, not discovered mid-validation.
const ruleSetSchema = `{
	"type": "object",
	"required": ["id", "name", "version", "rules"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"name": {"type": "string", "minLength": 1},
		"version": {"type": "string", "minLength": 1},
		"rules": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "rule", "category", "severity", "predicate"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"rule": {"type": "string", "minLength": 1},
					"category": {"enum": ["format", "content", "legal", "financial", "technical"]},
					"severity": {"enum": ["critical", "major", "minor", "warning"]},
					"description": {"type": "string"},
					"predicate": {"$ref": "#/definitions/predicate"},
					"fixSuggestion": {"type": "string"}
				}
			}
		}
	},
	"definitions": {
		"predicate": {
			"type": "object",
			"required": ["kind"],
			"properties": {
				"kind": {"enum": ["pattern", "presence", "absence", "numeric_bound", "length_bound", "all_of"]},
				"field": {"type": "string"},
				"pattern": {"type": "string"},
				"min": {"type": "number"},
				"max": {"type": "number"},
				"minLength": {"type": "integer"},
				"maxLength": {"type": "integer"},
				"conditions": {
					"type": "array",
					"items": {"$ref": "#/definitions/predicate"}
				}
			}
		}
	}
}`

// CompiledRuleSet is a rule set with every pattern predicate pre-compiled.
type CompiledRuleSet struct {
	Set      *models.RuleSet
	patterns map[string]*regexp.Regexp
}

// LoadRuleSets reads every *.json rule set in dir, validates each against the
// schema and compiles its patterns.
func LoadRuleSets(dir string) (map[string]*CompiledRuleSet, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read rule set directory: %w", err)
	}

	schemaLoader := gojsonschema.NewStringLoader(ruleSetSchema)
	ruleSets := make(map[string]*CompiledRuleSet)

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rule set %s: %w", path, err)
		}

		compiled, err := CompileRuleSet(schemaLoader, data)
		if err != nil {
			return nil, err
		}
		ruleSets[compiled.Set.ID] = compiled
	}
	return ruleSets, nil
}

// CompileRuleSet validates one rule set document and compiles its patterns.
func CompileRuleSet(schemaLoader gojsonschema.JSONLoader, data []byte) (*CompiledRuleSet, error) {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, errors.NewIncompleteRuleSetError("unknown", err.Error())
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, errors.NewIncompleteRuleSetError("unknown", strings.Join(problems, "; "))
	}

	var set models.RuleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, errors.NewIncompleteRuleSetError("unknown", err.Error())
	}

	patterns := make(map[string]*regexp.Regexp)
	for _, rule := range set.Rules {
		if err := compilePatterns(&rule.Predicate, patterns); err != nil {
			return nil, errors.NewIncompleteRuleSetError(set.ID,
				fmt.Sprintf("rule %s: %v", rule.ID, err))
		}
	}

	return &CompiledRuleSet{Set: &set, patterns: patterns}, nil
}

func compilePatterns(p *models.Predicate, patterns map[string]*regexp.Regexp) error {
	if p.Kind == models.PredicatePattern {
		if p.Pattern == "" {
			return fmt.Errorf("pattern predicate without a pattern")
		}
		re, err := regexp.Compile(p.Pattern)
		if err != nil {
			return fmt.Errorf("invalid pattern %q: %v", p.Pattern, err)
		}
		patterns[p.Pattern] = re
	}
	for i := range p.Conditions {
		if err := compilePatterns(&p.Conditions[i], patterns); err != nil {
			return err
		}
	}
	return nil
}
