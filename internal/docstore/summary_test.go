package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/form"
)

func TestGetSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, `[
	  {"id":"stars","type":"rating","text":"Stars","max":5},
	  {"id":"tags","type":"multiple","text":"Tags","options":[{"value":"x"},{"value":"y"}]},
	  {"id":"note","type":"text","text":"Note"}
	]`)
	allowMultiple(t, f, doc)

	subs := []answer.Answers{
		{"stars": answer.Number(4), "tags": answer.List{answer.String("x"), answer.String("y")}},
		{"stars": answer.String("5"), "tags": answer.List{answer.String("x")}, "legacy": answer.Bool(true)},
		{"tags": answer.List{answer.String("y"), answer.String("y")}, "extra": answer.String("z")},
	}
	var last *form.Response
	for _, a := range subs {
		resp, err := f.svc.AppendResponse(ctx, doc.ID, Submission{Respondent: form.Anonymous("fp"), Answers: a})
		require.NoError(t, err)
		last = resp
	}

	sum, err := f.svc.GetSummary(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.ResponseCount)
	require.NotNil(t, sum.LastResponseAt)
	assert.Equal(t, last.SubmittedAt, *sum.LastResponseAt)

	ids := make([]string, len(sum.PerQuestion))
	for i, qs := range sum.PerQuestion {
		ids[i] = qs.ID
	}
	assert.Equal(t, []string{"stars", "tags", "note", "extra", "legacy"}, ids)

	stars := sum.PerQuestion[0]
	assert.Equal(t, form.TypeRating, stars.Type)
	assert.Equal(t, map[string]int{"4": 1, "5": 1}, stars.AnswerCounts)
	require.NotNil(t, stars.Average)
	assert.Equal(t, 4.5, *stars.Average)
	assert.Equal(t, 4.0, *stars.Min)
	assert.Equal(t, 5.0, *stars.Max)

	tags := sum.PerQuestion[1]
	assert.Equal(t, map[string]int{"x": 2, "y": 3}, tags.AnswerCounts)
	assert.Nil(t, tags.Average)

	note := sum.PerQuestion[2]
	assert.Empty(t, note.AnswerCounts)

	extra := sum.PerQuestion[3]
	assert.Equal(t, form.QuestionType(""), extra.Type)
	assert.Equal(t, map[string]int{"z": 1}, extra.AnswerCounts)
}

func TestSummarize_WithoutIndex(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := form.New("f", "No index", []form.Question{{ID: "n", Type: form.TypeNumber, Text: "N"}}, "alice", at)
	doc.Index = nil
	doc.Responses = []form.Response{
		{ID: "r1", SubmittedAt: at, Respondent: form.Anonymous("a"), Answers: answer.Answers{"n": answer.Number(1)}},
		{ID: "r2", SubmittedAt: at.Add(time.Hour), Respondent: form.Anonymous("b"), Answers: answer.Answers{"n": answer.Number(2)}},
	}

	sum := Summarize(doc)
	assert.Equal(t, 2, sum.ResponseCount)
	require.NotNil(t, sum.LastResponseAt)
	assert.Equal(t, at.Add(time.Hour), *sum.LastResponseAt)
	require.Len(t, sum.PerQuestion, 1)
	assert.Equal(t, map[string]int{"1": 1, "2": 1}, sum.PerQuestion[0].AnswerCounts)
	assert.Equal(t, 1.5, *sum.PerQuestion[0].Average)
}
