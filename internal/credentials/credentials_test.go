package credentials

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

// newTestStore swaps the real keyring for the in-memory mock so tests don't
// touch the OS secret facility.
func newTestStore(t *testing.T) *Keyring {
	t.Helper()
	keyring.MockInit()
	return NewKeyring()
}

func TestKeyring_RoundTrip(t *testing.T) {
	ks := newTestStore(t)

	tests := []struct {
		name  string
		token string
	}{
		{"ascii", "tok-1234"},
		{"unicode", "токен-秘密-🔑"},
		{"large", strings.Repeat("s3cr3t-", 700)}, // ~4.9KB
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, ks.SaveToken("alice", tt.token))

			got, err := ks.LoadToken("alice")
			require.NoError(t, err)
			assert.Equal(t, tt.token, got)
		})
	}
}

func TestKeyring_Overwrite(t *testing.T) {
	ks := newTestStore(t)

	require.NoError(t, ks.SaveToken("alice", "first"))
	require.NoError(t, ks.SaveToken("alice", "second"))

	got, err := ks.LoadToken("alice")
	require.NoError(t, err)
	assert.Equal(t, "second", got)
}

func TestKeyring_IsolatesUsers(t *testing.T) {
	ks := newTestStore(t)

	require.NoError(t, ks.SaveToken("alice", "alice-token"))
	require.NoError(t, ks.SaveToken("bob", "bob-token"))

	aliceTok, err := ks.LoadToken("alice")
	require.NoError(t, err)
	bobTok, err := ks.LoadToken("bob")
	require.NoError(t, err)

	assert.Equal(t, "alice-token", aliceTok)
	assert.Equal(t, "bob-token", bobTok)
}

func TestKeyring_LoadAbsent(t *testing.T) {
	ks := newTestStore(t)

	got, err := ks.LoadToken("nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestKeyring_Delete(t *testing.T) {
	ks := newTestStore(t)

	require.NoError(t, ks.SaveToken("alice", "tok"))
	require.NoError(t, ks.DeleteToken("alice"))

	got, err := ks.LoadToken("alice")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Deleting an absent user is idempotent.
	assert.NoError(t, ks.DeleteToken("alice"))
	assert.NoError(t, ks.DeleteToken("never-existed"))
}

func TestKeyring_HasToken(t *testing.T) {
	ks := newTestStore(t)

	has, err := ks.HasToken("alice")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, ks.SaveToken("alice", "tok"))

	has, err = ks.HasToken("alice")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestKeyring_RejectsEmptyInput(t *testing.T) {
	ks := newTestStore(t)

	assert.Error(t, ks.SaveToken("", "tok"))
	assert.Error(t, ks.SaveToken("alice", ""))

	_, err := ks.LoadToken("")
	assert.Error(t, err)

	assert.Error(t, ks.DeleteToken(""))
}

func TestKeyring_ActiveUser(t *testing.T) {
	ks := newTestStore(t)

	got, err := ks.ActiveUser()
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, ks.SaveActiveUser("alice"))

	got, err = ks.ActiveUser()
	require.NoError(t, err)
	assert.Equal(t, "alice", got)

	// A later login replaces the owner.
	require.NoError(t, ks.SaveActiveUser("bob"))

	got, err = ks.ActiveUser()
	require.NoError(t, err)
	assert.Equal(t, "bob", got)

	require.NoError(t, ks.ClearActiveUser())

	got, err = ks.ActiveUser()
	require.NoError(t, err)
	assert.Empty(t, got)

	// Clearing twice is idempotent.
	assert.NoError(t, ks.ClearActiveUser())
}

func TestKeyring_ActiveUserRejectsEmptyName(t *testing.T) {
	ks := newTestStore(t)

	assert.Error(t, ks.SaveActiveUser(""))
}
