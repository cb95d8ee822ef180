package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/docstore"
	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/lock"
	"github.com/roach88/formdoc/internal/store"
	"github.com/roach88/formdoc/internal/templates"
	"github.com/roach88/formdoc/internal/testutil"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Step     int    `json:"step"`
	Op       string `json:"op"`
	Ref      string `json:"ref,omitempty"`
	Response string `json:"response,omitempty"`
	Outcome  string `json:"outcome"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every step outcome and assertion matched.
	Pass bool `json:"pass"`

	Trace   []TraceEvent      `json:"trace"`
	Errors  []string          `json:"errors,omitempty"`
	Summary *docstore.Summary `json:"summary"`

	// Document is the final stored form.
	Document *form.Document `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{Pass: true, Trace: []TraceEvent{}, Errors: []string{}}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Harness executes scenario steps against one service.
type Harness struct {
	svc   *docstore.Service
	clock *testutil.StepClock
	docID string
	refs  map[string]string // step name -> response id
}

// Run executes a scenario in a fresh in-memory store.
//
// Execution flow:
//  1. Open an in-memory SQLite store and a table lock on it
//  2. Create the form (applying settings, if any)
//  3. Execute steps, comparing each outcome with its expect
//  4. Evaluate assertions on the final document
//  5. Return the result with trace, summary and errors
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:", store.WithVersionHistory())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	reg, errs := templates.NewRegistry("")
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load templates: %w", errors.Join(errs...))
	}

	h := &Harness{
		clock: testutil.NewStepClock(testutil.Epoch, time.Minute),
		refs:  map[string]string{},
	}
	h.svc = docstore.New(st, lock.NewTableLock(st, lock.DefaultOptions()),
		docstore.WithClock(h.clock),
		docstore.WithIDGenerator(testutil.NewSequenceIDs("id")),
		docstore.WithTemplates(reg),
	)

	ctx := context.Background()
	if err := h.createForm(ctx, scenario.Form); err != nil {
		return nil, fmt.Errorf("failed to create form: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}

	doc, err := h.svc.Load(ctx, h.docID)
	if err != nil {
		return nil, fmt.Errorf("failed to load final document: %w", err)
	}
	result.Document = doc
	result.Summary = docstore.Summarize(doc)

	for _, msg := range EvaluateAssertions(doc, scenario.Assertions, h.refs) {
		result.AddError("%s", msg)
	}
	return result, nil
}

func (h *Harness) createForm(ctx context.Context, fs FormSpec) error {
	var questions []form.Question
	if fs.Questions != nil {
		if err := convert(fs.Questions, &questions); err != nil {
			return fmt.Errorf("questions: %w", err)
		}
	}
	owner := fs.Owner
	if owner == "" {
		owner = "owner"
	}

	doc, err := h.svc.Create(ctx, docstore.CreateRequest{
		Title:     fs.Title,
		Template:  fs.Template,
		Owner:     owner,
		Questions: questions,
	})
	if err != nil {
		return err
	}
	h.docID = doc.ID

	if len(fs.Settings) == 0 {
		return nil
	}
	var settings form.SettingsPatch
	if err := convert(fs.Settings, &settings); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	_, err = h.svc.Update(ctx, doc.ID, docstore.Patch{Settings: &settings})
	return err
}

// executeStep runs one step. Outcomes other than success are recorded,
// not returned; only errors that carry no docstore code abort the run.
func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	ev := TraceEvent{Step: n, Op: step.Op}
	var err error

	switch step.Op {
	case OpAppend:
		ev.Ref = step.As
		var sub docstore.Submission
		if err := convert(step.Respondent, &sub.Respondent); err != nil {
			return fmt.Errorf("respondent: %w", err)
		}
		if step.Answers != nil {
			if err := convert(step.Answers, &sub.Answers); err != nil {
				return fmt.Errorf("answers: %w", err)
			}
		} else {
			sub.Answers = answer.Answers{}
		}
		var resp *form.Response
		resp, err = h.svc.AppendResponse(ctx, h.docID, sub)
		if err == nil {
			ev.Response = resp.ID
			if step.As != "" {
				h.refs[step.As] = resp.ID
			}
		}

	case OpDeleteResponse:
		ev.Ref = step.Ref
		ev.Response = h.refs[step.Ref]
		err = h.svc.DeleteResponse(ctx, h.docID, ev.Response)

	case OpDeleteAll:
		_, err = h.svc.DeleteAllResponses(ctx, h.docID)

	case OpRebuild:
		err = h.svc.RebuildIndex(ctx, h.docID)

	case OpAdvance:
		d, perr := time.ParseDuration(step.By)
		if perr != nil {
			return perr
		}
		h.clock.Set(h.clock.Current().Add(d))
	}

	ev.Outcome = OutcomeOK
	if err != nil {
		var de *docstore.Error
		if !errors.As(err, &de) {
			return err
		}
		ev.Outcome = string(de.Code)
	}
	result.Trace = append(result.Trace, ev)

	want := step.Expect
	if want == "" {
		want = OutcomeOK
	}
	if ev.Outcome != want {
		result.AddError("step %d (%s): expected %s, got %s", n, step.Op, want, ev.Outcome)
	}
	return nil
}

// convert round-trips YAML-decoded data through JSON into a document type,
// so scenarios use the same field names as stored documents.
func convert(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
