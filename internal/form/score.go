package form

import (
	"math"

	"github.com/roach88/formdoc/internal/answer"
)

// IsQuiz reports whether any option of any question carries a score.
func IsQuiz(doc *Document) bool {
	for _, q := range doc.Questions {
		for _, o := range q.Options {
			if o.Score != nil {
				return true
			}
		}
	}
	return false
}

// ComputeScore grades answers against the option scores of doc.
//
// The maximum for a single-select question is its best option score; for a
// multiple-select question it is the sum of its positive option scores.
// Earned points are the scores of the chosen options. Questions without
// scored options do not contribute.
func ComputeScore(doc *Document, answers answer.Answers) *Score {
	s := &Score{ByQuestion: map[string]float64{}}

	for _, q := range doc.Questions {
		scores := optionScores(q)
		if len(scores) == 0 {
			continue
		}

		var earned float64
		for _, v := range answer.Flatten(answers[q.ID]) {
			if pts, ok := scores[answer.Key(v)]; ok {
				earned += pts
			}
		}

		s.Max += questionMax(q)
		s.Total += earned
		s.ByQuestion[q.ID] = earned
	}

	if s.Max > 0 {
		s.Percentage = math.Round(s.Total/s.Max*10000) / 100
	}
	return s
}

func optionScores(q Question) map[string]float64 {
	var scores map[string]float64
	for _, o := range q.Options {
		if o.Score == nil {
			continue
		}
		if scores == nil {
			scores = map[string]float64{}
		}
		scores[o.Value] = *o.Score
	}
	return scores
}

func questionMax(q Question) float64 {
	if q.Type == TypeMultiple {
		var sum float64
		for _, o := range q.Options {
			if o.Score != nil && *o.Score > 0 {
				sum += *o.Score
			}
		}
		return sum
	}

	best := math.Inf(-1)
	for _, o := range q.Options {
		if o.Score != nil && *o.Score > best {
			best = *o.Score
		}
	}
	if math.IsInf(best, -1) || best < 0 {
		return 0
	}
	return best
}
