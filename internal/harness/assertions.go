package harness

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/index"
)

// EvaluateAssertions checks each assertion against the final document and
// returns one message per failure. refs maps step names to response ids.
func EvaluateAssertions(doc *form.Document, assertions []Assertion, refs map[string]string) []string {
	var failures []string
	for i, a := range assertions {
		if msg := evaluate(doc, a, refs); msg != "" {
			failures = append(failures, fmt.Sprintf("assertions[%d] %s: %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluate(doc *form.Document, a Assertion, refs map[string]string) string {
	switch a.Type {
	case AssertResponseCount:
		if got := index.ResponseCount(doc); got != a.Count || len(doc.Responses) != a.Count {
			return fmt.Sprintf("expected %d responses, index has %d, array has %d", a.Count, got, len(doc.Responses))
		}

	case AssertAnswerCounts:
		got := index.AnswerCounts(doc, a.Question)
		want := a.Counts
		if want == nil {
			want = map[string]int{}
		}
		if !maps.Equal(got, want) {
			return fmt.Sprintf("question %s: expected %v, got %v", a.Question, want, got)
		}

	case AssertIndexValid:
		ok, err := index.Verify(doc)
		if err != nil {
			return err.Error()
		}
		if !ok {
			return "index checksum or count does not match responses"
		}

	case AssertByDate:
		var got []string
		for _, r := range index.ResponsesByDate(doc, a.Date) {
			got = append(got, r.ID)
		}
		var want []string
		for _, ref := range a.Refs {
			want = append(want, refs[ref])
		}
		if !slices.Equal(got, want) {
			return fmt.Sprintf("date %s: expected %v, got %v", a.Date, want, got)
		}

	case AssertScore:
		pos := doc.ResponsePosition(refs[a.Ref])
		if pos < 0 {
			return fmt.Sprintf("response %s not found", a.Ref)
		}
		score := doc.Responses[pos].Score
		if score == nil {
			return fmt.Sprintf("response %s has no score", a.Ref)
		}
		if score.Total != a.Total {
			return fmt.Sprintf("response %s: expected total %v, got %v", a.Ref, a.Total, score.Total)
		}
	}
	return ""
}
