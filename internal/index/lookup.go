package index

import (
	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/form"
)

// FindDuplicate returns the position of an earlier response from the same
// respondent. Anonymous respondents match on fingerprint, users on user id;
// external respondents never match.
//
// With an index, a respondent without an entry has no earlier response. The
// responses are scanned only when there is no index, or when the indexed
// position does not hold a matching response.
func FindDuplicate(doc *form.Document, who form.Respondent) (int, bool) {
	var key string
	switch who.Kind {
	case form.RespondentAnonymous:
		key = who.Fingerprint
	case form.RespondentUser:
		key = who.UserID
	}
	if key == "" {
		return 0, false
	}

	if doc.Index != nil {
		m := doc.Index.Fingerprints
		if who.Kind == form.RespondentUser {
			m = doc.Index.UserIDs
		}
		pos, ok := m[key]
		if !ok {
			return 0, false
		}
		if pos >= 0 && pos < len(doc.Responses) && sameRespondent(doc.Responses[pos].Respondent, who) {
			return pos, true
		}
	}

	for i := len(doc.Responses) - 1; i >= 0; i-- {
		if sameRespondent(doc.Responses[i].Respondent, who) {
			return i, true
		}
	}
	return 0, false
}

func sameRespondent(a, b form.Respondent) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case form.RespondentAnonymous:
		return a.Fingerprint != "" && a.Fingerprint == b.Fingerprint
	case form.RespondentUser:
		return a.UserID != "" && a.UserID == b.UserID
	}
	return false
}

// ResponseCount returns the indexed count, or the length of the responses
// array when the document has no index.
func ResponseCount(doc *form.Document) int {
	if doc.Index != nil {
		return doc.Index.ResponseCount
	}
	return len(doc.Responses)
}

// AnswerCounts returns the tally for questionID. Without an index the tally
// is computed from the responses.
func AnswerCounts(doc *form.Document, questionID string) map[string]int {
	if doc.Index != nil {
		out := make(map[string]int, len(doc.Index.AnswerCounts[questionID]))
		for k, n := range doc.Index.AnswerCounts[questionID] {
			out[k] = n
		}
		return out
	}

	out := map[string]int{}
	for _, r := range doc.Responses {
		for _, v := range answer.Flatten(r.Answers[questionID]) {
			out[answer.Key(v)]++
		}
	}
	return out
}

// ResponsesByDate resolves the by_date bucket for date (YYYY-MM-DD) back into
// responses. Positions past the end of the array are skipped.
func ResponsesByDate(doc *form.Document, date string) []form.Response {
	if doc.Index == nil {
		var out []form.Response
		for _, r := range doc.Responses {
			if DateKey(r.SubmittedAt) == date {
				out = append(out, r)
			}
		}
		return out
	}

	positions := doc.Index.ByDate[date]
	out := make([]form.Response, 0, len(positions))
	for _, pos := range positions {
		if pos < 0 || pos >= len(doc.Responses) {
			continue
		}
		out = append(out, doc.Responses[pos])
	}
	return out
}
