package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSubject struct {
	perms []string
	super bool
}

func (s testSubject) HasPermission(perm string) bool {
	for _, p := range s.perms {
		if p == perm {
			return true
		}
	}
	return false
}

func (s testSubject) IsSuperAdmin() bool { return s.super }

type testResource string

func (r testResource) LockString() string { return string(r) }

func TestParse(t *testing.T) {
	t.Run("default board locks", func(t *testing.T) {
		locks, err := Parse("read:all();post:all();admin:perm(Admin)")
		require.NoError(t, err)
		assert.Len(t, locks, 3)
		assert.Equal(t, True, locks[Read])
		assert.Equal(t, PermAny{"Admin"}, locks[Admin])
	})

	t.Run("and binds tighter than or", func(t *testing.T) {
		locks, err := Parse("post:perm(Player) and perm(Writer) or perm(Admin)")
		require.NoError(t, err)
		assert.Equal(t, AnyOf{AllOf{PermAny{"Player"}, PermAny{"Writer"}}, PermAny{"Admin"}}, locks[Post])
	})

	t.Run("multiple permissions and whitespace", func(t *testing.T) {
		locks, err := Parse("  read : perm( Player , Builder ) ; admin:perm_all(Admin,Builder);")
		require.NoError(t, err)
		assert.Equal(t, PermAny{"Player", "Builder"}, locks[Read])
		assert.Equal(t, PermAll{"Admin", "Builder"}, locks[Admin])
	})

	t.Run("capability names are case-insensitive", func(t *testing.T) {
		locks, err := Parse("READ:none()")
		require.NoError(t, err)
		assert.Equal(t, False, locks[Read])
	})

	t.Run("empty string parses to no locks", func(t *testing.T) {
		locks, err := Parse("")
		require.NoError(t, err)
		assert.Empty(t, locks)
	})

	invalid := []string{
		"read",
		"read:",
		"read:all",
		"read:exec(rm)",
		"read:perm()",
		"read:all(x)",
		"read:perm(a b)",
		"re ad:all()",
		"read:all() or",
		"read:perm(Admin) and",
	}
	for _, input := range invalid {
		t.Run("invalid "+input, func(t *testing.T) {
			_, err := Parse(input)
			var perr *ParseError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestLocksStringRoundTrip(t *testing.T) {
	locks, err := Parse("read:all();admin:perm(Admin) or perm_all(Builder, Staff);post:none()")
	require.NoError(t, err)
	rendered := locks.String()
	assert.Equal(t, "admin:perm(Admin) or perm_all(Builder, Staff);post:none();read:all()", rendered)

	again, err := Parse(rendered)
	require.NoError(t, err)
	assert.Equal(t, locks, again)
}

func TestValidate(t *testing.T) {
	_, err := Validate("read:all();post:perm(Player)", BoardCapabilities)
	assert.NoError(t, err)

	_, err = Validate("see:all()", BoardCapabilities)
	assert.Error(t, err, "see does not apply to boards")

	_, err = Validate("", BoardCapabilities)
	assert.Error(t, err)

	_, err = Validate("read:bogus()", BoardCapabilities)
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	merged, err := Merge("read:all();post:all();admin:perm(Admin)", "post:perm(Player)")
	require.NoError(t, err)
	assert.Equal(t, "admin:perm(Admin);post:perm(Player);read:all()", merged)

	_, err = Merge("read:all()", "post:")
	assert.Error(t, err)
}

func TestEvaluatorCheck(t *testing.T) {
	e := New("Developer")
	board := testResource("read:all();post:perm(Player);admin:perm(Admin)")

	player := testSubject{perms: []string{"Player"}}
	guest := testSubject{}
	admin := testSubject{perms: []string{"Admin"}}
	developer := testSubject{perms: []string{"Developer"}}
	super := testSubject{super: true}

	testCases := []struct {
		name       string
		subject    Subject
		capability Capability
		checkAdmin bool
		want       bool
	}{
		{"guest reads", guest, Read, true, true},
		{"guest cannot post", guest, Post, true, false},
		{"player posts", player, Post, true, true},
		{"player is not admin", player, Admin, true, false},
		{"admin posts through admin fallback", admin, Post, true, true},
		{"admin without fallback cannot post", admin, Post, false, false},
		{"missing capability denies", player, Delete, true, false},
		{"super-admin flag overrides", super, Delete, false, true},
		{"super permission overrides", developer, Post, false, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, e.Check(tc.subject, board, tc.capability, tc.checkAdmin))
		})
	}
}

func TestEvaluatorFailsClosed(t *testing.T) {
	e := New("")
	broken := testResource("read:all();post:exec(everything)")
	player := testSubject{perms: []string{"Player"}}

	assert.False(t, e.Authorize(player, broken, Read), "a parse error anywhere denies everything")
	assert.False(t, e.Authorize(player, broken, Read), "cached failure still denies")
	assert.False(t, e.Authorize(nil, testResource("read:all()"), Read))
	assert.True(t, e.Authorize(testSubject{super: true}, broken, Read), "super-admin does not depend on locks")
}

func TestEvaluatorFlags(t *testing.T) {
	e := New("")
	board := testResource("read:all();post:perm(Player);admin:perm(Admin)")

	assert.Equal(t, "RP ", e.Flags(testSubject{perms: []string{"Player"}}, board, BoardCapabilities...))
	assert.Equal(t, "R A", e.Flags(testSubject{perms: []string{"Admin"}}, board, BoardCapabilities...))
	assert.Equal(t, "R  ", e.Flags(testSubject{}, board, BoardCapabilities...))
}
