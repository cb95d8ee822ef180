package roles

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingOracle struct{}

func (failingOracle) IsMember(context.Context, string, string) (bool, error) {
	return false, errors.New("directory unavailable")
}

func testPermissions() Permissions {
	return Permissions{
		Owner: "alice",
		Roles: []Grant{
			{Subject: Subject{Type: SubjectGroup, ID: "staff"}, Role: Editor},
			{Subject: Subject{Type: SubjectUser, ID: "bob"}, Role: Viewer},
			{Subject: Subject{Type: SubjectPublic}, Role: Respondent},
			{Subject: Subject{Type: SubjectUser, ID: "bob"}, Role: Admin},
			{Subject: Subject{Type: SubjectGroup, ID: "board"}, Role: Admin},
		},
	}
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	perms := testPermissions()
	oracle := StaticGroups{
		"carol": {"staff"},
		"dave":  {"board", "staff"},
		"bob":   {"board"},
	}

	tests := []struct {
		name     string
		user     string
		expected Role
	}{
		{"owner", "alice", Owner},
		{"first user grant wins", "bob", Viewer},
		{"group grant", "carol", Editor},
		{"first matching group grant wins", "dave", Editor},
		{"public fallback", "erin", Respondent},
		{"anonymous gets public", "", Respondent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(ctx, perms, tt.user, oracle))
		})
	}
}

func TestResolve_NoPublicGrant(t *testing.T) {
	perms := Permissions{Owner: "alice"}
	assert.Equal(t, None, Resolve(context.Background(), perms, "mallory", nil))
	assert.Equal(t, None, Resolve(context.Background(), perms, "", nil))
}

func TestResolve_EmptyOwnerNeverMatchesAnonymous(t *testing.T) {
	perms := Permissions{}
	assert.Equal(t, None, Resolve(context.Background(), perms, "", nil))
}

func TestResolve_OracleErrorIsNonMembership(t *testing.T) {
	perms := Permissions{Roles: []Grant{{Subject: Subject{Type: SubjectGroup, ID: "staff"}, Role: Editor}}}
	assert.Equal(t, None, Resolve(context.Background(), perms, "carol", failingOracle{}))
}

func TestResolve_NilOracleSkipsGroups(t *testing.T) {
	perms := Permissions{Roles: []Grant{
		{Subject: Subject{Type: SubjectGroup, ID: "staff"}, Role: Editor},
		{Subject: Subject{Type: SubjectPublic}, Role: Respondent},
	}}
	assert.Equal(t, Respondent, Resolve(context.Background(), perms, "carol", nil))
}

func TestRoleOrdering(t *testing.T) {
	order := []Role{None, Respondent, Viewer, Editor, Admin, Owner}
	for i := 1; i < len(order); i++ {
		assert.True(t, order[i].AtLeast(order[i-1]))
		assert.False(t, order[i-1].AtLeast(order[i]))
	}
}

func TestRoleText(t *testing.T) {
	for _, r := range []Role{None, Respondent, Viewer, Editor, Admin, Owner} {
		b, err := r.MarshalText()
		require.NoError(t, err)

		var parsed Role
		require.NoError(t, parsed.UnmarshalText(b))
		assert.Equal(t, r, parsed)
	}

	_, err := ParseRole("superuser")
	assert.Error(t, err)

	_, err = Role(42).MarshalText()
	assert.Error(t, err)
}

func TestPermissionsJSON(t *testing.T) {
	src := `{"owner":"alice","roles":[{"subject":{"type":"group","id":"staff"},"role":"editor"},{"subject":{"type":"public"},"role":"respondent"}]}`

	var p Permissions
	require.NoError(t, json.Unmarshal([]byte(src), &p))
	assert.Equal(t, "alice", p.Owner)
	require.Len(t, p.Roles, 2)
	assert.Equal(t, Editor, p.Roles[0].Role)
	assert.Equal(t, SubjectPublic, p.Roles[1].Subject.Type)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, src, string(out))
}
