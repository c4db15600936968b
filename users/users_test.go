package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-jobportal-client/internal/utils"
	"github.com/jrsteele09/go-jobportal-client/users"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	require.Equal(t, users.RoleEmployer, users.ParseRole("EMPLOYER"))
	require.Equal(t, users.RoleAdmin, users.ParseRole(" admin "))
	require.Equal(t, users.RoleCandidate, users.ParseRole(""))
	require.Equal(t, users.RoleCandidate, users.ParseRole("RECRUITER"))
}

func TestSelfRegistrable(t *testing.T) {
	require.True(t, users.RoleCandidate.SelfRegistrable())
	require.True(t, users.RoleEmployer.SelfRegistrable())
	require.False(t, users.RoleAdmin.SelfRegistrable())
	require.False(t, users.RoleType("OWNER").SelfRegistrable())
}

func TestUnmarshalDefaultsRole(t *testing.T) {
	var u users.User
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","email":"a@b.co"}`), &u))
	require.Equal(t, users.RoleCandidate, u.Role)

	require.NoError(t, json.Unmarshal([]byte(`{"id":"u1","role":"employer"}`), &u))
	require.Equal(t, users.RoleEmployer, u.Role)
}

func TestMerge(t *testing.T) {
	prior := &users.User{ID: "u1", Email: "jane@example.com", FirstName: "Jane", Role: users.RoleEmployer}

	t.Run("role omitted keeps previous role", func(t *testing.T) {
		merged := users.Merge(prior, users.Patch{FirstName: utils.Ptr("A")})
		require.Equal(t, users.RoleEmployer, merged.Role)
		require.Equal(t, "A", merged.FirstName)
		require.Equal(t, "jane@example.com", merged.Email)
	})

	t.Run("unknown role keeps previous role", func(t *testing.T) {
		merged := users.Merge(prior, users.Patch{Role: utils.Ptr("SUPERUSER")})
		require.Equal(t, users.RoleEmployer, merged.Role)
	})

	t.Run("known role replaces", func(t *testing.T) {
		merged := users.Merge(prior, users.Patch{Role: utils.Ptr("CANDIDATE")})
		require.Equal(t, users.RoleCandidate, merged.Role)
	})

	t.Run("id never replaced", func(t *testing.T) {
		merged := users.Merge(prior, users.Patch{ID: utils.Ptr("u2")})
		require.Equal(t, "u1", merged.ID)
	})

	t.Run("prior is not mutated", func(t *testing.T) {
		_ = users.Merge(prior, users.Patch{FirstName: utils.Ptr("Changed"), Phone: utils.Ptr("555")})
		require.Equal(t, "Jane", prior.FirstName)
		require.Nil(t, prior.Phone)
	})

	t.Run("nil prior defaults to candidate", func(t *testing.T) {
		merged := users.Merge(nil, users.Patch{ID: utils.Ptr("u9")})
		require.Equal(t, "u9", merged.ID)
		require.Equal(t, users.RoleCandidate, merged.Role)
	})
}

func TestPatchDecodeDistinguishesAbsentFields(t *testing.T) {
	var p users.Patch
	require.NoError(t, json.Unmarshal([]byte(`{"firstName":"A","phone":""}`), &p))
	require.Nil(t, p.Role)
	require.NotNil(t, p.Phone)
	require.Equal(t, "", *p.Phone)
}

func TestClone(t *testing.T) {
	u := &users.User{ID: "u1", Phone: utils.Ptr("123")}
	c := u.Clone()
	*c.Phone = "456"
	require.Equal(t, "123", *u.Phone)

	var nilUser *users.User
	require.Nil(t, nilUser.Clone())
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Password1"))
	require.ErrorContains(t, users.ValidatePasswordStrength("Pw1"), "at least 8")
	require.ErrorContains(t, users.ValidatePasswordStrength("password1"), "uppercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("PASSWORD1"), "lowercase")
	require.ErrorContains(t, users.ValidatePasswordStrength("Passwords"), "number")
}
