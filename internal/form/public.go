package form

import (
	"encoding/json"
	"time"
)

// PublicDocument is what a respondent may see of a form: the definition
// without responses, index, permissions or secrets.
type PublicDocument struct {
	ID                string          `json:"id"`
	Version           string          `json:"version"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Questions         []Question      `json:"questions"`
	Pages             []Page          `json:"pages"`
	Branding          json.RawMessage `json:"branding"`
	Anonymous         bool            `json:"anonymous"`
	AllowMultiple     bool            `json:"allow_multiple"`
	RequireLogin      bool            `json:"require_login"`
	ExpiresAt         *time.Time      `json:"expires_at"`
	ShowResults       ShowResults     `json:"show_results"`
	PasswordProtected bool            `json:"password_protected"`
	IsQuiz            bool            `json:"is_quiz"`
	ModifiedAt        time.Time       `json:"modified_at"`
}

// PublicView returns the respondent-facing view of doc. Option scores are
// stripped so a quiz does not leak its answer key.
func PublicView(doc *Document) *PublicDocument {
	questions := make([]Question, len(doc.Questions))
	for i, q := range doc.Questions {
		if len(q.Options) > 0 {
			opts := make([]Option, len(q.Options))
			for j, o := range q.Options {
				opts[j] = Option{Value: o.Value, Label: o.Label}
			}
			q.Options = opts
		}
		questions[i] = q
	}

	s := doc.Settings
	return &PublicDocument{
		ID:                doc.ID,
		Version:           doc.Version,
		Title:             doc.Title,
		Description:       doc.Description,
		Questions:         questions,
		Pages:             doc.Pages,
		Branding:          doc.Branding,
		Anonymous:         s.Anonymous,
		AllowMultiple:     s.AllowMultiple,
		RequireLogin:      s.RequireLogin,
		ExpiresAt:         s.ExpiresAt,
		ShowResults:       s.ShowResults,
		PasswordProtected: s.SharePasswordHash != nil && *s.SharePasswordHash != "",
		IsQuiz:            IsQuiz(doc),
		ModifiedAt:        doc.ModifiedAt,
	}
}
