// Package form defines the form document: the single JSON blob that holds a
// form definition together with every response submitted to it and the
// derived index over those responses.
//
// The package owns the wire format (Decode/Encode), submission validation,
// quiz scoring and the secrets stored in form settings. It does not touch
// storage; see package docstore for the read-modify-write protocol.
package form

import (
	"encoding/json"
	"time"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/roles"
	"github.com/roach88/formdoc/internal/showif"
)

// SchemaVersion is written to newly created documents.
const SchemaVersion = "1.3"

// QuestionType is the declared type of a question.
type QuestionType string

const (
	TypeText     QuestionType = "text"
	TypeTextarea QuestionType = "textarea"
	TypeChoice   QuestionType = "choice"
	TypeMultiple QuestionType = "multiple"
	TypeDropdown QuestionType = "dropdown"
	TypeDate     QuestionType = "date"
	TypeTime     QuestionType = "time"
	TypeDatetime QuestionType = "datetime"
	TypeNumber   QuestionType = "number"
	TypeScale    QuestionType = "scale"
	TypeRating   QuestionType = "rating"
	TypeMatrix   QuestionType = "matrix"
	TypeFile     QuestionType = "file"
)

var knownTypes = map[QuestionType]bool{
	TypeText: true, TypeTextarea: true, TypeChoice: true, TypeMultiple: true,
	TypeDropdown: true, TypeDate: true, TypeTime: true, TypeDatetime: true,
	TypeNumber: true, TypeScale: true, TypeRating: true, TypeMatrix: true,
	TypeFile: true,
}

// Known reports whether t is one of the supported question types.
func (t QuestionType) Known() bool {
	return knownTypes[t]
}

// Numeric reports whether answers to t are numbers.
func (t QuestionType) Numeric() bool {
	return t == TypeNumber || t == TypeScale || t == TypeRating
}

// Option is one choice of a choice, multiple or dropdown question.
// A non-nil Score anywhere in a document puts the form in quiz mode.
type Option struct {
	Value string   `json:"value"`
	Label string   `json:"label,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// Question is one question definition.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Description string       `json:"description,omitempty"`
	Required    bool         `json:"required"`
	Options     []Option     `json:"options,omitempty"`
	Rows        []string     `json:"rows,omitempty"`
	Columns     []string     `json:"columns,omitempty"`
	Min         *float64     `json:"min,omitempty"`
	Max         *float64     `json:"max,omitempty"`
	ShowIf      *showif.Expr `json:"showIf,omitempty"`
}

// Page groups question ids under a title.
type Page struct {
	Title     string   `json:"title"`
	Questions []string `json:"questions"`
}

// ShowResults controls when respondents may see aggregated results.
type ShowResults string

const (
	ShowResultsNever       ShowResults = "never"
	ShowResultsAfterSubmit ShowResults = "after_submit"
	ShowResultsAlways      ShowResults = "always"
)

// APIKey is a named key for programmatic access. Only the bcrypt hash is
// stored; the plaintext is returned once by NewAPIKey.
type APIKey struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Hash        string    `json:"hash"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// Webhook is an outgoing notification target. Delivery happens outside
// this module.
type Webhook struct {
	ID      string   `json:"id"`
	URL     string   `json:"url"`
	Secret  string   `json:"secret"`
	Events  []string `json:"events"`
	Enabled bool     `json:"enabled"`
}

// Settings holds the recognized per-form settings.
type Settings struct {
	Anonymous         bool        `json:"anonymous"`
	AllowMultiple     bool        `json:"allow_multiple"`
	ExpiresAt         *time.Time  `json:"expires_at"`
	RequireLogin      bool        `json:"require_login"`
	AllowedUsers      []string    `json:"allowed_users"`
	AllowedGroups     []string    `json:"allowed_groups"`
	PublicToken       *string     `json:"public_token"`
	SharePasswordHash *string     `json:"share_password_hash"`
	ShowResults       ShowResults `json:"show_results"`
	APIKeys           []APIKey    `json:"api_keys"`
	Webhooks          []Webhook   `json:"webhooks"`
}

// RespondentKind tags the Respondent variant.
type RespondentKind string

const (
	RespondentAnonymous RespondentKind = "anonymous"
	RespondentUser      RespondentKind = "user"
	RespondentExternal  RespondentKind = "external"
)

// Respondent identifies who submitted a response. Which fields are set
// depends on Kind: anonymous carries Fingerprint, user carries UserID and
// DisplayName, external carries DisplayName and Source.
type Respondent struct {
	Kind        RespondentKind `json:"type"`
	Fingerprint string         `json:"fingerprint,omitempty"`
	UserID      string         `json:"user_id,omitempty"`
	DisplayName string         `json:"display_name,omitempty"`
	Source      string         `json:"source,omitempty"`
}

// Anonymous returns an anonymous respondent.
func Anonymous(fingerprint string) Respondent {
	return Respondent{Kind: RespondentAnonymous, Fingerprint: fingerprint}
}

// User returns an authenticated respondent.
func User(userID, displayName string) Respondent {
	return Respondent{Kind: RespondentUser, UserID: userID, DisplayName: displayName}
}

// External returns a respondent imported from another system.
func External(displayName, source string) Respondent {
	return Respondent{Kind: RespondentExternal, DisplayName: displayName, Source: source}
}

// Score is the quiz result attached to a response.
type Score struct {
	Total      float64            `json:"total"`
	Max        float64            `json:"max"`
	Percentage float64            `json:"percentage"`
	ByQuestion map[string]float64 `json:"byQuestion"`
}

// Response is one submission. Responses are immutable once appended.
type Response struct {
	ID          string         `json:"id"`
	SubmittedAt time.Time      `json:"submitted_at"`
	Respondent  Respondent     `json:"respondent"`
	Answers     answer.Answers `json:"answers"`
	Score       *Score         `json:"score,omitempty"`
}

// Index is the derived lookup data over Responses. It is never the source
// of truth and can be rebuilt at any time; see package index.
type Index struct {
	ResponseCount  int                       `json:"response_count"`
	LastResponseAt *time.Time                `json:"last_response_at"`
	Fingerprints   map[string]int            `json:"fingerprints"`
	UserIDs        map[string]int            `json:"user_ids"`
	ByDate         map[string][]int          `json:"by_date"`
	AnswerCounts   map[string]map[string]int `json:"answer_counts"`
	Checksum       string                    `json:"_checksum"`
}

// NewIndex returns an empty index with all maps allocated.
func NewIndex() *Index {
	return &Index{
		Fingerprints: map[string]int{},
		UserIDs:      map[string]int{},
		ByDate:       map[string][]int{},
		AnswerCounts: map[string]map[string]int{},
	}
}

// Document is a form definition plus its responses.
type Document struct {
	ID          string            `json:"id"`
	Version     string            `json:"version"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Settings    Settings          `json:"settings"`
	Permissions roles.Permissions `json:"permissions"`
	Questions   []Question        `json:"questions"`
	Pages       []Page            `json:"pages"`
	Branding    json.RawMessage   `json:"branding"`
	Responses   []Response        `json:"responses"`
	Index       *Index            `json:"_index,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ModifiedAt  time.Time         `json:"modified_at"`
	Favorite    bool              `json:"favorite"`
}

// New returns an empty document owned by owner.
func New(id, title string, questions []Question, owner string, now time.Time) *Document {
	if questions == nil {
		questions = []Question{}
	}
	now = now.UTC()
	doc := &Document{
		ID:          id,
		Version:     SchemaVersion,
		Title:       title,
		Settings:    Settings{ShowResults: ShowResultsNever},
		Permissions: roles.Permissions{Owner: owner},
		Questions:   questions,
		Responses:   []Response{},
		Index:       NewIndex(),
		CreatedAt:   now,
		ModifiedAt:  now,
	}
	doc.applyDefaults()
	return doc
}

// Question returns the question with the given id.
func (d *Document) Question(id string) (*Question, bool) {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i], true
		}
	}
	return nil, false
}

// ResponsePosition returns the array position of the response with the
// given id, or -1.
func (d *Document) ResponsePosition(id string) int {
	for i := range d.Responses {
		if d.Responses[i].ID == id {
			return i
		}
	}
	return -1
}

// Expired reports whether the form stopped accepting responses before now.
func (d *Document) Expired(now time.Time) bool {
	return d.Settings.ExpiresAt != nil && !now.Before(*d.Settings.ExpiresAt)
}
