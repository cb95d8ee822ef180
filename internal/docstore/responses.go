package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/formdoc/internal/answer"
	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/index"
)

// Submission is one respondent's answers to a form.
type Submission struct {
	Respondent form.Respondent
	Answers    answer.Answers
}

// AppendResponse validates a submission and appends it to the form.
//
// Checks run in order: expiry, access (require_login, allowed users and
// groups), answers, then the duplicate check when the form does not allow
// multiple submissions. On an anonymous form a user respondent is stored as
// an anonymous fingerprint derived from the user id.
func (s *Service) AppendResponse(ctx context.Context, id string, sub Submission) (*form.Response, error) {
	var out form.Response
	err := s.mutate(ctx, id, "append", func(doc *form.Document, now time.Time) error {
		if doc.Expired(now) {
			return newValidationError(id, "", "form expired", nil)
		}
		who := sub.Respondent
		if err := s.checkAccess(ctx, doc, who); err != nil {
			return err
		}

		answers := sub.Answers
		if answers == nil {
			answers = answer.Answers{}
		}
		if err := form.ValidateAnswers(doc, answers); err != nil {
			var ve *form.ValidationError
			if errors.As(err, &ve) {
				return newValidationError(id, ve.QuestionID, ve.Reason, err)
			}
			return newValidationError(id, "", err.Error(), err)
		}

		if doc.Settings.Anonymous && who.Kind == form.RespondentUser {
			who = form.Anonymous(form.Fingerprint(doc.ID, who.UserID))
		}
		if !doc.Settings.AllowMultiple {
			if pos, dup := index.FindDuplicate(doc, who); dup {
				return newDuplicateError(id, pos)
			}
		}

		resp := form.Response{
			ID:          s.ids.Generate(),
			SubmittedAt: now,
			Respondent:  who,
			Answers:     answers,
		}
		if form.IsQuiz(doc) {
			resp.Score = form.ComputeScore(doc, answers)
		}

		doc.Responses = append(doc.Responses, resp)
		if err := index.Update(doc, len(doc.Responses)-1); err != nil {
			return fmt.Errorf("index response: %w", err)
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("response appended", "doc", id, "response", out.ID, "respondent", string(out.Respondent.Kind))
	return &out, nil
}

func (s *Service) checkAccess(ctx context.Context, doc *form.Document, who form.Respondent) error {
	switch who.Kind {
	case form.RespondentAnonymous, form.RespondentUser, form.RespondentExternal:
	default:
		return newValidationError(doc.ID, "", fmt.Sprintf("unknown respondent type %q", who.Kind), nil)
	}

	set := doc.Settings
	restricted := len(set.AllowedUsers) > 0 || len(set.AllowedGroups) > 0
	if !set.RequireLogin && !restricted {
		return nil
	}
	if who.Kind != form.RespondentUser || who.UserID == "" {
		return newValidationError(doc.ID, "", "login required", nil)
	}
	if !restricted || slices.Contains(set.AllowedUsers, who.UserID) {
		return nil
	}
	if s.groups != nil {
		for _, g := range set.AllowedGroups {
			member, err := s.groups.IsMember(ctx, who.UserID, g)
			if err != nil {
				slog.Warn("group membership lookup failed", "user", who.UserID, "group", g, "error", err)
				continue
			}
			if member {
				return nil
			}
		}
	}
	return newValidationError(doc.ID, "", "respondent is not allowed to answer this form", nil)
}

// DeleteResponse removes one response and rebuilds the index.
func (s *Service) DeleteResponse(ctx context.Context, id, responseID string) error {
	err := s.mutate(ctx, id, "delete-response", func(doc *form.Document, _ time.Time) error {
		pos := doc.ResponsePosition(responseID)
		if pos < 0 {
			return newNotFoundError(id, "response "+responseID, nil)
		}
		doc.Responses = slices.Delete(doc.Responses, pos, pos+1)
		return index.Rebuild(doc)
	})
	if err != nil {
		return err
	}
	slog.Info("response deleted", "doc", id, "response", responseID)
	return nil
}

// DeleteAllResponses removes every response and returns how many there were.
func (s *Service) DeleteAllResponses(ctx context.Context, id string) (int, error) {
	var removed int
	err := s.mutate(ctx, id, "delete-all-responses", func(doc *form.Document, _ time.Time) error {
		removed = len(doc.Responses)
		doc.Responses = []form.Response{}
		return index.Rebuild(doc)
	})
	if err != nil {
		return 0, err
	}
	slog.Info("responses cleared", "doc", id, "count", removed)
	return removed, nil
}

// RebuildIndex recomputes the index from the responses.
func (s *Service) RebuildIndex(ctx context.Context, id string) error {
	err := s.mutate(ctx, id, "rebuild-index", func(doc *form.Document, _ time.Time) error {
		return index.Rebuild(doc)
	})
	if err != nil {
		return err
	}
	slog.Info("index rebuilt", "doc", id)
	return nil
}

// VerifyIndex reports whether the stored index matches the responses. A
// mismatch is not repaired; call RebuildIndex.
func (s *Service) VerifyIndex(ctx context.Context, id string) (bool, error) {
	doc, err := s.read(ctx, id)
	if err != nil {
		return false, err
	}
	ok, err := index.Verify(doc)
	if err != nil {
		return false, fmt.Errorf("verify index of form %s: %w", id, err)
	}
	if !ok {
		slog.Warn("index checksum mismatch", "doc", id)
	}
	return ok, nil
}
