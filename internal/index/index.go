// Package index maintains the derived _index section of a form document:
// response count, duplicate-detection maps, date buckets, per-question
// answer tallies and a checksum over the responses array.
//
// The index is never the source of truth. Appends update it incrementally;
// deletions shift positions, so they always trigger a full Rebuild.
package index

import (
	"fmt"
	"time"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/canonical"
	"github.com/roach88/formdoc/internal/form"
)

// DateLayout is the key format of the by_date buckets.
const DateLayout = "2006-01-02"

// Checksum returns the hex SHA-256 of the canonical serialization of
// responses. A nil slice hashes the same as an empty one.
func Checksum(responses []form.Response) (string, error) {
	if responses == nil {
		responses = []form.Response{}
	}
	data, err := canonical.Marshal(responses)
	if err != nil {
		return "", fmt.Errorf("checksum responses: %w", err)
	}
	return canonical.Sum(data), nil
}

// Update records the response at position pos of doc.Responses in the
// index and recomputes the checksum over the full responses array.
// A document without an index gets a fresh one first.
func Update(doc *form.Document, pos int) error {
	if pos < 0 || pos >= len(doc.Responses) {
		return fmt.Errorf("index update: position %d out of range [0,%d)", pos, len(doc.Responses))
	}
	if doc.Index == nil {
		doc.Index = form.NewIndex()
	}

	record(doc.Index, &doc.Responses[pos], pos)

	sum, err := Checksum(doc.Responses)
	if err != nil {
		return err
	}
	doc.Index.Checksum = sum
	return nil
}

// Rebuild discards the index and replays every response in order.
func Rebuild(doc *form.Document) error {
	idx := form.NewIndex()
	for i := range doc.Responses {
		record(idx, &doc.Responses[i], i)
	}

	sum, err := Checksum(doc.Responses)
	if err != nil {
		return err
	}
	idx.Checksum = sum
	doc.Index = idx
	return nil
}

// Verify reports whether the stored checksum and count match the
// responses array. A missing index never verifies.
func Verify(doc *form.Document) (bool, error) {
	if doc.Index == nil {
		return false, nil
	}
	sum, err := Checksum(doc.Responses)
	if err != nil {
		return false, err
	}
	return sum == doc.Index.Checksum && doc.Index.ResponseCount == len(doc.Responses), nil
}

// record applies the per-response indexing steps.
func record(idx *form.Index, r *form.Response, pos int) {
	idx.ResponseCount++

	at := r.SubmittedAt.UTC()
	if idx.LastResponseAt == nil || !at.Before(*idx.LastResponseAt) {
		idx.LastResponseAt = &at
	}

	switch r.Respondent.Kind {
	case form.RespondentAnonymous:
		if r.Respondent.Fingerprint != "" {
			idx.Fingerprints[r.Respondent.Fingerprint] = pos
		}
	case form.RespondentUser:
		if r.Respondent.UserID != "" {
			idx.UserIDs[r.Respondent.UserID] = pos
		}
	}

	day := DateKey(r.SubmittedAt)
	idx.ByDate[day] = append(idx.ByDate[day], pos)

	for qid, v := range r.Answers {
		values := answer.Flatten(v)
		if len(values) == 0 {
			continue
		}
		counts := idx.AnswerCounts[qid]
		if counts == nil {
			counts = map[string]int{}
			idx.AnswerCounts[qid] = counts
		}
		for _, elem := range values {
			counts[answer.Key(elem)]++
		}
	}
}

// DateKey returns the by_date bucket for t.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
