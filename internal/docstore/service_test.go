package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formdoc/internal/blob"
	"github.com/roach88/formdoc/internal/form"
	"github.com/roach88/formdoc/internal/lock"
	"github.com/roach88/formdoc/internal/roles"
	"github.com/roach88/formdoc/internal/templates"
	"github.com/roach88/formdoc/internal/testutil"
)

type fixture struct {
	svc   *Service
	blobs *blob.MemoryStore
	locks *lock.MemoryBackend
	clock *testutil.StepClock
}

// newFixture builds a Service over in-memory blobs and locks with a clock
// that advances one second per operation.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		blobs: blob.NewMemoryStore(true),
		locks: lock.NewMemoryBackend(),
		clock: testutil.NewStepClock(testutil.Epoch, time.Second),
	}
	locker := lock.NewTableLock(f.locks, lock.Options{MaxAttempts: 2000, BaseDelay: time.Millisecond})
	base := []Option{
		WithClock(f.clock),
		WithIDGenerator(testutil.NewSequenceIDs("id")),
	}
	f.svc = New(f.blobs, locker, append(base, opts...)...)
	return f
}

func (f *fixture) create(t *testing.T, questionsJSON string) *form.Document {
	t.Helper()
	var qs []form.Question
	if questionsJSON != "" {
		require.NoError(t, json.Unmarshal([]byte(questionsJSON), &qs))
	}
	doc, err := f.svc.Create(context.Background(), CreateRequest{Title: "Test form", Owner: "alice", Questions: qs})
	require.NoError(t, err)
	return doc
}

func (f *fixture) lockHeld(id string) bool {
	return f.locks.Held(lock.Namespace, id)
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, CreateRequest{Title: "Survey", Description: "About us", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "id-0001", doc.ID)
	assert.Equal(t, form.SchemaVersion, doc.Version)
	assert.Equal(t, testutil.Epoch, doc.CreatedAt)

	loaded, err := f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Survey", loaded.Title)
	assert.Equal(t, "About us", loaded.Description)
	assert.Equal(t, "alice", loaded.Permissions.Owner)
	assert.Empty(t, loaded.Responses)
	require.NotNil(t, loaded.Index)
	assert.Equal(t, 0, loaded.Index.ResponseCount)

	owner, err := f.blobs.Owner(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestCreate_TitleRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{Owner: "alice"})
	assert.True(t, IsValidation(err), "got %v", err)
}

func TestCreate_FromTemplate(t *testing.T) {
	reg, errs := templates.NewRegistry("")
	require.Empty(t, errs)
	f := newFixture(t, WithTemplates(reg))
	ctx := context.Background()

	doc, err := f.svc.Create(ctx, CreateRequest{Template: "feedback", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "Feedback", doc.Title)
	assert.Len(t, doc.Questions, 3)

	doc, err = f.svc.Create(ctx, CreateRequest{Title: "My quiz", Template: "quiz", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, "My quiz", doc.Title)
	assert.True(t, form.IsQuiz(doc))

	_, err = f.svc.Create(ctx, CreateRequest{Template: "nope", Owner: "alice"})
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestLoad_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Load(context.Background(), "missing")
	require.True(t, IsNotFound(err), "got %v", err)
	assert.True(t, errors.Is(err, blob.ErrNotFound))
}

func TestLoad_Malformed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.blobs.Create(ctx, "bad", "alice", []byte("not json")))

	_, err := f.svc.Load(ctx, "bad")
	require.True(t, IsMalformed(err), "got %v", err)
	assert.True(t, errors.Is(err, form.ErrMalformedDocument))
}

func TestLoadPublicView(t *testing.T) {
	f := newFixture(t)
	doc := f.create(t, `[{"id":"q","type":"choice","text":"Pick","options":[{"value":"a","score":1}]}]`)

	view, err := f.svc.LoadPublicView(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, view.ID)
	assert.True(t, view.IsQuiz)
	assert.Nil(t, view.Questions[0].Options[0].Score)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, "")

	_, err := f.svc.AppendResponse(ctx, doc.ID, Submission{Respondent: form.Anonymous("fp")})
	require.NoError(t, err)

	title := "Renamed"
	fav := true
	updated, err := f.svc.Update(ctx, doc.ID, Patch{
		Title:    &title,
		Favorite: &fav,
		Settings: &form.SettingsPatch{AllowMultiple: &fav},
		Branding: json.RawMessage(`{"color":"#123456"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Title)

	loaded, err := f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Title)
	assert.True(t, loaded.Favorite)
	assert.True(t, loaded.Settings.AllowMultiple)
	assert.JSONEq(t, `{"color":"#123456"}`, string(loaded.Branding))
	assert.Len(t, loaded.Responses, 1, "responses survive a definition update")
	assert.True(t, loaded.ModifiedAt.After(loaded.CreatedAt))

	empty := ""
	_, err = f.svc.Update(ctx, doc.ID, Patch{Title: &empty})
	assert.True(t, IsValidation(err))
	assert.False(t, f.lockHeld(doc.ID))
}

func TestUpdate_SettingsPatchKeepsSharingSecrets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, "")

	require.NoError(t, f.svc.SetSharePassword(ctx, doc.ID, "hunter2"))
	token, err := f.svc.RotatePublicToken(ctx, doc.ID)
	require.NoError(t, err)
	plaintext, _, err := f.svc.CreateAPIKey(ctx, doc.ID, "ci", []string{"responses:read"})
	require.NoError(t, err)

	var patch form.SettingsPatch
	require.NoError(t, json.Unmarshal([]byte(`{"allow_multiple":true,"show_results":"always"}`), &patch))
	_, err = f.svc.Update(ctx, doc.ID, Patch{Settings: &patch})
	require.NoError(t, err)

	loaded, err := f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, loaded.Settings.AllowMultiple)
	assert.Equal(t, form.ShowResultsAlways, loaded.Settings.ShowResults)
	assert.Len(t, loaded.Settings.APIKeys, 1)
	_, ok := form.VerifyAPIKey(loaded.Settings, plaintext)
	assert.True(t, ok)
	assert.True(t, form.CheckSharePassword(loaded.Settings, "hunter2"))
	require.NotNil(t, loaded.Settings.PublicToken)
	assert.Equal(t, token, *loaded.Settings.PublicToken)

	err = json.Unmarshal([]byte(`{"allow_multiple":true,"share_password_hash":"hunter3"}`), &patch)
	assert.ErrorContains(t, err, "share_password_hash")

	bad := form.ShowResults("sometimes")
	_, err = f.svc.Update(ctx, doc.ID, Patch{Settings: &form.SettingsPatch{ShowResults: &bad}})
	assert.True(t, IsValidation(err))
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, "")

	require.NoError(t, f.svc.Delete(ctx, doc.ID))
	_, err := f.svc.Load(ctx, doc.ID)
	assert.True(t, IsNotFound(err))

	assert.True(t, IsNotFound(f.svc.Delete(ctx, doc.ID)))
	assert.False(t, f.lockHeld(doc.ID))
}

func TestResolveRole(t *testing.T) {
	f := newFixture(t, WithGroupOracle(roles.StaticGroups{"carol": {"staff"}}))
	ctx := context.Background()
	doc := f.create(t, "")

	// Permissions are not patchable; write them through the codec.
	loaded, err := f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	loaded.Permissions.Roles = []roles.Grant{
		{Subject: roles.Subject{Type: roles.SubjectUser, ID: "bob"}, Role: roles.Editor},
		{Subject: roles.Subject{Type: roles.SubjectGroup, ID: "staff"}, Role: roles.Viewer},
	}
	data, err := form.Encode(loaded, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.blobs.WriteAtomic(ctx, doc.ID, data))

	tests := []struct {
		user string
		want roles.Role
	}{
		{"alice", roles.Owner},
		{"bob", roles.Editor},
		{"carol", roles.Viewer},
		{"dave", roles.None},
		{"", roles.None},
	}
	for _, tt := range tests {
		got, err := f.svc.ResolveRole(ctx, doc.ID, tt.user)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "user %q", tt.user)
	}

	caps, err := f.svc.Capabilities(ctx, doc.ID, "bob")
	require.NoError(t, err)
	assert.True(t, caps.EditQuestions)
	assert.False(t, caps.DeleteForm)
}

func TestResolveRole_OwnerFallsBackToBlobOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := form.New("legacy", "Legacy", nil, "", time.Now())
	data, err := form.Encode(doc, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.blobs.Create(ctx, "legacy", "erin", data))

	role, err := f.svc.ResolveRole(ctx, "legacy", "erin")
	require.NoError(t, err)
	assert.Equal(t, roles.Owner, role)
}

func TestSharing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	doc := f.create(t, "")

	require.NoError(t, f.svc.SetSharePassword(ctx, doc.ID, "hunter2"))
	token, err := f.svc.RotatePublicToken(ctx, doc.ID)
	require.NoError(t, err)
	plaintext, key, err := f.svc.CreateAPIKey(ctx, doc.ID, "ci", []string{"responses:read"})
	require.NoError(t, err)

	loaded, err := f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, form.CheckSharePassword(loaded.Settings, "hunter2"))
	assert.False(t, form.CheckSharePassword(loaded.Settings, "wrong"))
	require.NotNil(t, loaded.Settings.PublicToken)
	assert.Equal(t, token, *loaded.Settings.PublicToken)

	got, ok := form.VerifyAPIKey(loaded.Settings, plaintext)
	require.True(t, ok)
	assert.Equal(t, key.ID, got.ID)

	require.NoError(t, f.svc.RevokeAPIKey(ctx, doc.ID, key.ID))
	assert.True(t, IsNotFound(f.svc.RevokeAPIKey(ctx, doc.ID, key.ID)))

	require.NoError(t, f.svc.SetSharePassword(ctx, doc.ID, ""))
	loaded, err = f.svc.Load(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.Settings.SharePasswordHash)
	assert.Empty(t, loaded.Settings.APIKeys)
}
