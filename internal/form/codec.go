package form

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/formdoc/internal/roles"
)

// ErrMalformedDocument is returned when bytes do not decode to a usable
// document.
var ErrMalformedDocument = errors.New("malformed document")

// Decode parses the wire representation of a document.
//
// Decoding fails with ErrMalformedDocument for invalid JSON, for a top-level
// value that is not an object, for a document without an id, and for
// responses whose respondent variant is unknown. Fields missing from older
// documents are filled with defaults: branding and pages stay null, missing
// collections become empty.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedDocument)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrMalformedDocument)
	}

	var doc Document
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedDocument)
	}

	for i, r := range doc.Responses {
		switch r.Respondent.Kind {
		case RespondentAnonymous, RespondentUser, RespondentExternal:
		default:
			return nil, fmt.Errorf("%w: responses[%d]: unknown respondent type %q",
				ErrMalformedDocument, i, r.Respondent.Kind)
		}
	}

	doc.applyDefaults()
	return &doc, nil
}

// Encode writes the wire representation of doc, re-stamping modified_at
// to now. Output is indented with two spaces and does not escape HTML
// characters or non-ASCII text.
func Encode(doc *Document, now time.Time) ([]byte, error) {
	doc.ModifiedAt = now.UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode document %s: %w", doc.ID, err)
	}
	return buf.Bytes(), nil
}

// applyDefaults fills fields absent from older documents.
func (d *Document) applyDefaults() {
	if d.Questions == nil {
		d.Questions = []Question{}
	}
	if d.Responses == nil {
		d.Responses = []Response{}
	}
	if bytes.Equal(bytes.TrimSpace(d.Branding), []byte("null")) {
		d.Branding = nil
	}
	if d.Permissions.Roles == nil {
		d.Permissions.Roles = []roles.Grant{}
	}

	s := &d.Settings
	if s.ShowResults == "" {
		s.ShowResults = ShowResultsNever
	}
	if s.AllowedUsers == nil {
		s.AllowedUsers = []string{}
	}
	if s.AllowedGroups == nil {
		s.AllowedGroups = []string{}
	}
	if s.APIKeys == nil {
		s.APIKeys = []APIKey{}
	}
	if s.Webhooks == nil {
		s.Webhooks = []Webhook{}
	}

	if idx := d.Index; idx != nil {
		if idx.Fingerprints == nil {
			idx.Fingerprints = map[string]int{}
		}
		if idx.UserIDs == nil {
			idx.UserIDs = map[string]int{}
		}
		if idx.ByDate == nil {
			idx.ByDate = map[string][]int{}
		}
		if idx.AnswerCounts == nil {
			idx.AnswerCounts = map[string]map[string]int{}
		}
	}
}
