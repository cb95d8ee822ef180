// Package docstore is the document store: every operation that reads or
// changes a stored form goes through Service.
//
// Writes that touch responses or the index follow one cycle:
//
//	lock -> read -> decode -> mutate -> encode -> write -> touch -> purge versions -> unlock
//
// The unlock is deferred and runs on every path.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/formdoc/internal/blob"
	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/lock"
	"github.com/roach88/formdoc/internal/roles"
	"github.com/roach88/formdoc/internal/templates"
)

// TemplateSource looks up form templates by name.
// Implemented by *templates.Registry.
type TemplateSource interface {
	Get(name string) (templates.Template, bool)
}

// Service implements the document store operations.
//
// Thread-safety: Service holds no mutable state of its own. Concurrent calls
// on the same document are serialized by the Locker, which may be shared
// with other processes through its backend.
type Service struct {
	blobs     blob.Store
	purger    blob.VersionPurger
	locker    lock.Locker
	groups    roles.GroupOracle
	clock     Clock
	ids       IDGenerator
	templates TemplateSource
}

// Option configures a Service.
type Option func(*Service)

// WithVersionPurger sets the version-history collaborator. By default the
// blob store is used when it implements blob.VersionPurger.
func WithVersionPurger(p blob.VersionPurger) Option {
	return func(s *Service) { s.purger = p }
}

// WithGroupOracle sets the group-membership oracle used for group role
// grants and allowed_groups.
func WithGroupOracle(o roles.GroupOracle) Option {
	return func(s *Service) { s.groups = o }
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithIDGenerator sets the form and response id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

// WithTemplates sets the template source used by Create.
func WithTemplates(t TemplateSource) Option {
	return func(s *Service) { s.templates = t }
}

// New creates a Service over the given blob store and lock.
func New(blobs blob.Store, locker lock.Locker, opts ...Option) *Service {
	s := &Service{
		blobs:  blobs,
		locker: locker,
		clock:  SystemClock{},
		ids:    UUIDv7Generator{},
	}
	if p, ok := blobs.(blob.VersionPurger); ok {
		s.purger = p
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest describes a new form. When Template is set its title,
// description and questions are used for any field left empty.
type CreateRequest struct {
	Title       string
	Description string
	Template    string
	Owner       string
	Questions   []form.Question
}

// Create stores a new empty form and returns it.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*form.Document, error) {
	questions := req.Questions
	title, description := req.Title, req.Description

	if req.Template != "" {
		var tmpl templates.Template
		ok := false
		if s.templates != nil {
			tmpl, ok = s.templates.Get(req.Template)
		}
		if !ok {
			return nil, newNotFoundError("", "template "+req.Template, nil)
		}
		if title == "" {
			title = tmpl.Title
		}
		if description == "" {
			description = tmpl.Description
		}
		if questions == nil {
			questions = append([]form.Question(nil), tmpl.Questions...)
		}
	}
	if title == "" {
		return nil, newValidationError("", "", "title is required", nil)
	}

	now := s.clock.Now()
	doc := form.New(s.ids.Generate(), title, questions, req.Owner, now)
	doc.Description = description
	for _, w := range form.CheckDefinition(doc) {
		slog.Warn("form definition", "doc", doc.ID, "warning", w)
	}

	data, err := form.Encode(doc, now)
	if err != nil {
		return nil, fmt.Errorf("encode form %s: %w", doc.ID, err)
	}
	if err := s.blobs.Create(ctx, doc.ID, req.Owner, data); err != nil {
		return nil, fmt.Errorf("create form %s: %w", doc.ID, err)
	}
	slog.Info("form created", "doc", doc.ID, "template", req.Template, "questions", len(doc.Questions))
	return doc, nil
}

// Load returns the stored form.
func (s *Service) Load(ctx context.Context, id string) (*form.Document, error) {
	return s.read(ctx, id)
}

// LoadPublicView returns the form as shown to respondents.
func (s *Service) LoadPublicView(ctx context.Context, id string) (*form.PublicDocument, error) {
	doc, err := s.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return form.PublicView(doc), nil
}

// Patch lists the fields Update may change. Nil fields are left alone.
// A Branding of "null" clears the branding. Settings are merged key by key
// into the stored settings.
type Patch struct {
	Title       *string
	Description *string
	Settings    *form.SettingsPatch
	Questions   *[]form.Question
	Pages       *[]form.Page
	Branding    json.RawMessage
	Favorite    *bool
}

// Update applies a patch to the form definition. Responses and the index
// are never touched.
func (s *Service) Update(ctx context.Context, id string, p Patch) (*form.Document, error) {
	var out *form.Document
	err := s.mutate(ctx, id, "update", func(doc *form.Document, _ time.Time) error {
		if p.Title != nil {
			if *p.Title == "" {
				return newValidationError(id, "", "title is required", nil)
			}
			doc.Title = *p.Title
		}
		if p.Description != nil {
			doc.Description = *p.Description
		}
		if p.Settings != nil {
			if err := p.Settings.Apply(&doc.Settings); err != nil {
				return newValidationError(id, "", err.Error(), err)
			}
		}
		if p.Questions != nil {
			doc.Questions = *p.Questions
		}
		if p.Pages != nil {
			doc.Pages = *p.Pages
		}
		if p.Branding != nil {
			doc.Branding = p.Branding
		}
		if p.Favorite != nil {
			doc.Favorite = *p.Favorite
		}
		for _, w := range form.CheckDefinition(doc) {
			slog.Warn("form definition", "doc", id, "warning", w)
		}
		out = doc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the form.
func (s *Service) Delete(ctx context.Context, id string) error {
	tok, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer s.locker.Release(ctx, tok)

	if err := s.blobs.Delete(ctx, id); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return newNotFoundError(id, "form", err)
		}
		return fmt.Errorf("delete form %s: %w", id, err)
	}
	slog.Info("form deleted", "doc", id)
	return nil
}

// mutate runs fn on the current document under the document lock and
// writes the result back. Nothing is written when fn fails.
func (s *Service) mutate(ctx context.Context, id, op string, fn func(doc *form.Document, now time.Time) error) error {
	tok, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer s.locker.Release(ctx, tok)

	doc, err := s.read(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := fn(doc, now); err != nil {
		return err
	}

	data, err := form.Encode(doc, now)
	if err != nil {
		return fmt.Errorf("encode form %s: %w", id, err)
	}
	if err := s.blobs.WriteAtomic(ctx, id, data); err != nil {
		return fmt.Errorf("write form %s: %w", id, err)
	}
	if err := s.blobs.Touch(ctx, id); err != nil {
		return fmt.Errorf("touch form %s: %w", id, err)
	}
	s.purgeVersions(ctx, id)

	slog.Debug("form written", "doc", id, "op", op, "bytes", len(data))
	return nil
}

func (s *Service) acquire(ctx context.Context, id string) (lock.Token, error) {
	tok, err := s.locker.Acquire(ctx, id)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			slog.Warn("lock timeout", "doc", id)
			return lock.Token{}, newLockTimeoutError(id, err)
		}
		return lock.Token{}, fmt.Errorf("lock form %s: %w", id, err)
	}
	return tok, nil
}

// read loads and decodes the current bytes straight from the blob store.
func (s *Service) read(ctx context.Context, id string) (*form.Document, error) {
	data, err := s.blobs.Read(ctx, id)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return nil, newNotFoundError(id, "form", err)
		}
		return nil, fmt.Errorf("read form %s: %w", id, err)
	}
	doc, err := form.Decode(data)
	if err != nil {
		slog.Error("malformed document", "doc", id, "error", err)
		return nil, newMalformedError(id, err)
	}
	return doc, nil
}

func (s *Service) purgeVersions(ctx context.Context, id string) {
	if s.purger == nil {
		return
	}
	n, err := blob.PurgeVersions(ctx, s.purger, id)
	if err != nil {
		slog.Warn("version purge failed", "doc", id, "purged", n, "error", err)
		return
	}
	if n > 0 {
		slog.Debug("versions purged", "doc", id, "count", n)
	}
}

// ResolveRole returns the caller's role on the form. A form without an
// owner in its permissions falls back to the blob store's owner.
func (s *Service) ResolveRole(ctx context.Context, id, userID string) (roles.Role, error) {
	doc, err := s.read(ctx, id)
	if err != nil {
		return roles.None, err
	}
	perms := doc.Permissions
	if perms.Owner == "" {
		owner, err := s.blobs.Owner(ctx, id)
		if err != nil {
			return roles.None, fmt.Errorf("owner of form %s: %w", id, err)
		}
		perms.Owner = owner
	}
	return roles.Resolve(ctx, perms, userID, s.groups), nil
}

// Capabilities returns what the caller may do with the form.
func (s *Service) Capabilities(ctx context.Context, id, userID string) (roles.Capabilities, error) {
	role, err := s.ResolveRole(ctx, id, userID)
	if err != nil {
		return roles.Capabilities{}, err
	}
	return roles.CapabilitiesFor(role), nil
}
