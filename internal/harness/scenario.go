package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines one form scenario: a form, the operations applied to it,
// and the assertions checked on the final document.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Form is the form created before the first step.
	Form FormSpec `yaml:"form"`

	// Steps run in order against the form.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final document.
	Assertions []Assertion `yaml:"assertions"`
}

// FormSpec describes the form a scenario starts from. Questions, settings
// and respondents use the document's JSON field names.
type FormSpec struct {
	Title     string           `yaml:"title"`
	Template  string           `yaml:"template,omitempty"`
	Owner     string           `yaml:"owner,omitempty"`
	Settings  map[string]any   `yaml:"settings,omitempty"`
	Questions []map[string]any `yaml:"questions,omitempty"`
}

// Step is one operation on the form.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// As names the response created by an append step.
	As string `yaml:"as,omitempty"`

	// Ref names the response a delete_response step removes.
	Ref string `yaml:"ref,omitempty"`

	Respondent map[string]any `yaml:"respondent,omitempty"`
	Answers    map[string]any `yaml:"answers,omitempty"`

	// By is the clock advance of an advance step ("24h").
	By string `yaml:"by,omitempty"`

	// Expect is "ok" (default) or the expected docstore error code.
	Expect string `yaml:"expect,omitempty"`
}

// Step ops.
const (
	OpAppend         = "append"
	OpDeleteResponse = "delete_response"
	OpDeleteAll      = "delete_all"
	OpRebuild        = "rebuild"
	OpAdvance        = "advance"
)

// OutcomeOK is the outcome of a step that succeeded.
const OutcomeOK = "ok"

// Assertion validates the final document.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Count is the expected response count (response_count).
	Count int `yaml:"count,omitempty"`

	// Question and Counts give the expected tally (answer_counts).
	Question string         `yaml:"question,omitempty"`
	Counts   map[string]int `yaml:"counts,omitempty"`

	// Date and Refs give the responses expected on a day (by_date).
	Date string   `yaml:"date,omitempty"`
	Refs []string `yaml:"refs,omitempty"`

	// Ref and Total give a response's expected quiz score (score).
	Ref   string  `yaml:"ref,omitempty"`
	Total float64 `yaml:"total,omitempty"`
}

// Assertion types.
const (
	AssertResponseCount = "response_count"
	AssertAnswerCounts  = "answer_counts"
	AssertIndexValid    = "index_valid"
	AssertByDate        = "by_date"
	AssertScore         = "score"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict fields catch typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Form.Title == "" && s.Form.Template == "" {
		return fmt.Errorf("form.title or form.template is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := map[string]bool{}
	for i, step := range s.Steps {
		switch step.Op {
		case OpAppend:
			if step.Respondent == nil {
				return fmt.Errorf("steps[%d]: respondent is required for append", i)
			}
			if step.As != "" {
				if names[step.As] {
					return fmt.Errorf("steps[%d]: response name %q already used", i, step.As)
				}
				names[step.As] = true
			}
		case OpDeleteResponse:
			if !names[step.Ref] {
				return fmt.Errorf("steps[%d]: ref %q does not name an earlier append", i, step.Ref)
			}
		case OpAdvance:
			if _, err := time.ParseDuration(step.By); err != nil {
				return fmt.Errorf("steps[%d]: by: %w", i, err)
			}
		case OpDeleteAll, OpRebuild:
		default:
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, names); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]bool) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertResponseCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertAnswerCounts:
		if a.Question == "" {
			return fmt.Errorf("assertions[%d]: question is required for answer_counts", index)
		}
	case AssertIndexValid:
	case AssertByDate:
		if _, err := time.Parse(time.DateOnly, a.Date); err != nil {
			return fmt.Errorf("assertions[%d]: date: %w", index, err)
		}
		for _, ref := range a.Refs {
			if !names[ref] {
				return fmt.Errorf("assertions[%d]: ref %q does not name an append", index, ref)
			}
		}
	case AssertScore:
		if !names[a.Ref] {
			return fmt.Errorf("assertions[%d]: ref %q does not name an append", index, a.Ref)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
