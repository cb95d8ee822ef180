package form

import (
	"fmt"
	"regexp"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/showif"
)

// ValidationError reports the first answer that violates its question's
// constraints.
type ValidationError struct {
	QuestionID string
	Reason     string
}

func (e *ValidationError) Error() string {
	if e.QuestionID == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: question %s: %s", e.QuestionID, e.Reason)
}

var (
	datePattern     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	datetimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}`)
	timePattern     = regexp.MustCompile(`^\d{2}:\d{2}(:\d{2})?$`)
)

// ValidateAnswers checks a submission against the questions of doc.
//
// Questions are visited in definition order. A required question whose
// showIf condition is false for this answer set is exempt from the required
// check. Answers to ids that are not questions of the form are ignored.
func ValidateAnswers(doc *Document, answers answer.Answers) error {
	for i := range doc.Questions {
		q := &doc.Questions[i]
		v, present := answers[q.ID]

		if !present || answer.IsEmpty(v) {
			if q.Required && showif.Active(q.ShowIf, answers) {
				return &ValidationError{QuestionID: q.ID, Reason: "answer is required"}
			}
			continue
		}

		if reason := checkFormat(q, v); reason != "" {
			return &ValidationError{QuestionID: q.ID, Reason: reason}
		}
	}
	return nil
}

// checkFormat returns a non-empty reason when v does not fit q's type.
func checkFormat(q *Question, v answer.Value) string {
	switch q.Type {
	case TypeMultiple, TypeMatrix:
		if _, ok := v.(answer.List); !ok {
			return "expected a list of values"
		}
		return ""
	}

	if _, ok := v.(answer.List); ok && q.Type != TypeFile {
		return "expected a single value"
	}

	switch q.Type {
	case TypeDate:
		return matchText(v, datePattern, "expected a date as YYYY-MM-DD")
	case TypeDatetime:
		return matchText(v, datetimePattern, "expected a datetime as YYYY-MM-DDTHH:MM")
	case TypeTime:
		return matchText(v, timePattern, "expected a time as HH:MM")
	case TypeNumber, TypeScale, TypeRating:
		n, ok := answer.AsNumber(v)
		if !ok {
			return "expected a number"
		}
		if q.Min != nil && n < *q.Min {
			return fmt.Sprintf("must be at least %s", answer.Key(answer.Number(*q.Min)))
		}
		if q.Max != nil && n > *q.Max {
			return fmt.Sprintf("must be at most %s", answer.Key(answer.Number(*q.Max)))
		}
	}
	return ""
}

func matchText(v answer.Value, pattern *regexp.Regexp, reason string) string {
	s, ok := answer.AsText(v)
	if !ok || !pattern.MatchString(s) {
		return reason
	}
	return ""
}

// CheckDefinition reports problems in the question definitions that do not
// prevent the form from being used: duplicate ids, unknown types, and
// showIf conditions that reference a missing or later question.
func CheckDefinition(doc *Document) []string {
	var warnings []string
	position := make(map[string]int, len(doc.Questions))

	for i, q := range doc.Questions {
		if _, dup := position[q.ID]; dup {
			warnings = append(warnings, fmt.Sprintf("question %s: duplicate id", q.ID))
			continue
		}
		position[q.ID] = i
		if !q.Type.Known() {
			warnings = append(warnings, fmt.Sprintf("question %s: unknown type %q", q.ID, q.Type))
		}
	}

	for i, q := range doc.Questions {
		if q.ShowIf == nil {
			continue
		}
		for _, ref := range showif.References(q.ShowIf.Condition) {
			at, ok := position[ref]
			switch {
			case !ok:
				warnings = append(warnings, fmt.Sprintf("question %s: showIf references unknown question %s", q.ID, ref))
			case at >= i:
				warnings = append(warnings, fmt.Sprintf("question %s: showIf references later question %s", q.ID, ref))
			}
		}
	}
	return warnings
}
