package docstore

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/index"
)

// Summary is the aggregate view of a form's responses.
type Summary struct {
	ResponseCount  int               `json:"responseCount"`
	LastResponseAt *time.Time        `json:"lastResponseAt"`
	PerQuestion    []QuestionSummary `json:"perQuestion"`
}

// QuestionSummary aggregates the answers to one question. Average, Min and
// Max are set for numeric question types that received numeric answers.
// Answers to ids that are not questions of the form are reported with an
// empty Type.
type QuestionSummary struct {
	ID           string            `json:"id"`
	Type         form.QuestionType `json:"type,omitempty"`
	AnswerCounts map[string]int    `json:"answerCounts"`
	Average      *float64          `json:"average,omitempty"`
	Min          *float64          `json:"min,omitempty"`
	Max          *float64          `json:"max,omitempty"`
}

// GetSummary returns response counts and per-question tallies.
func (s *Service) GetSummary(ctx context.Context, id string) (*Summary, error) {
	doc, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return Summarize(doc), nil
}

// Summarize computes the summary of a decoded document. Counts come from
// the index when present.
func Summarize(doc *form.Document) *Summary {
	sum := &Summary{
		ResponseCount: index.ResponseCount(doc),
		PerQuestion:   make([]QuestionSummary, 0, len(doc.Questions)),
	}
	if doc.Index != nil {
		sum.LastResponseAt = doc.Index.LastResponseAt
	} else {
		for _, r := range doc.Responses {
			if sum.LastResponseAt == nil || r.SubmittedAt.After(*sum.LastResponseAt) {
				t := r.SubmittedAt
				sum.LastResponseAt = &t
			}
		}
	}

	defined := make(map[string]bool, len(doc.Questions))
	for _, q := range doc.Questions {
		defined[q.ID] = true
		qs := QuestionSummary{
			ID:           q.ID,
			Type:         q.Type,
			AnswerCounts: index.AnswerCounts(doc, q.ID),
		}
		if q.Type.Numeric() {
			qs.Average, qs.Min, qs.Max = numericStats(doc.Responses, q.ID)
		}
		sum.PerQuestion = append(sum.PerQuestion, qs)
	}

	var extra []string
	seen := map[string]bool{}
	for _, r := range doc.Responses {
		for qid := range r.Answers {
			if !defined[qid] && !seen[qid] {
				seen[qid] = true
				extra = append(extra, qid)
			}
		}
	}
	sort.Strings(extra)
	for _, qid := range extra {
		sum.PerQuestion = append(sum.PerQuestion, QuestionSummary{
			ID:           qid,
			AnswerCounts: index.AnswerCounts(doc, qid),
		})
	}
	return sum
}

func numericStats(responses []form.Response, questionID string) (avg, lo, hi *float64) {
	var total float64
	n := 0
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, r := range responses {
		f, ok := answer.AsNumber(r.Answers[questionID])
		if !ok {
			continue
		}
		total += f
		minV = math.Min(minV, f)
		maxV = math.Max(maxV, f)
		n++
	}
	if n == 0 {
		return nil, nil, nil
	}
	mean := math.Round(total/float64(n)*100) / 100
	return &mean, &minV, &maxV
}
