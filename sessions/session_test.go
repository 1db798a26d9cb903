package sessions_test

import (
	"testing"
	"time"

	"github.com/onesearch/onesearch/internal/utils"
	"github.com/onesearch/onesearch/sessions"
	"github.com/stretchr/testify/require"
)

func TestProviderValid(t *testing.T) {
	for _, p := range sessions.AllProviders {
		require.True(t, p.Valid(), "provider %s", p)
	}
	require.False(t, sessions.Provider("dropbox").Valid())
	require.False(t, sessions.Provider("").Valid())
}

func TestLinkTouchesOnlyNamedProvider(t *testing.T) {
	s := &sessions.Session{ID: "s1"}

	s.Link(sessions.ProviderGitHub, sessions.CredentialPatch{
		Username:    utils.Ptr("alice"),
		AccessToken: utils.Ptr("tok1"),
	})

	require.True(t, s.GitHub.Linked())
	require.False(t, s.Notion.Linked())
	require.False(t, s.GoogleDrive.Linked())
	require.False(t, s.Gmail.Linked())
}

func TestLinkMergePatchKeepsOmittedFields(t *testing.T) {
	s := &sessions.Session{ID: "s1"}
	expiry := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	s.Link(sessions.ProviderGmail, sessions.CredentialPatch{
		Username:             utils.Ptr("bob@example.com"),
		AccessToken:          utils.Ptr("access-1"),
		AccessTokenExpiresAt: &expiry,
		RefreshToken:         utils.Ptr("refresh-1"),
	})
	s.Link(sessions.ProviderGmail, sessions.CredentialPatch{
		AccessToken: utils.Ptr("access-2"),
	})

	creds := s.Credentials(sessions.ProviderGmail)
	require.Equal(t, "access-2", *creds.AccessToken)
	require.Equal(t, "refresh-1", *creds.RefreshToken)
	require.Equal(t, "bob@example.com", *creds.Username)
	require.True(t, creds.AccessTokenExpiresAt.Equal(expiry))
}

func TestUnlinkClearsOnlyNamedProvider(t *testing.T) {
	s := &sessions.Session{ID: "s1"}
	s.Link(sessions.ProviderGitHub, sessions.CredentialPatch{AccessToken: utils.Ptr("tok1")})
	s.Link(sessions.ProviderNotion, sessions.CredentialPatch{AccessToken: utils.Ptr("tok2")})

	s.Unlink(sessions.ProviderGitHub)

	require.False(t, s.GitHub.Linked())
	require.Nil(t, s.GitHub.AccessToken)
	require.True(t, s.Notion.Linked())
}

func TestUnknownProviderIsNoOp(t *testing.T) {
	s := &sessions.Session{ID: "s1"}

	s.Link(sessions.Provider("dropbox"), sessions.CredentialPatch{AccessToken: utils.Ptr("tok")})
	s.Unlink(sessions.Provider("dropbox"))

	require.Equal(t, sessions.Credentials{}, s.Credentials(sessions.Provider("dropbox")))
	for _, p := range sessions.AllProviders {
		require.False(t, s.Credentials(p).Linked())
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := &sessions.Session{
		ID:         "s1",
		SecretHash: []byte{1, 2, 3},
	}
	s.Link(sessions.ProviderGitHub, sessions.CredentialPatch{AccessToken: utils.Ptr("tok1")})

	clone := s.Clone()
	clone.SecretHash[0] = 99
	*clone.GitHub.AccessToken = "mutated"
	clone.Unlink(sessions.ProviderGitHub)

	require.Equal(t, byte(1), s.SecretHash[0])
	require.Equal(t, "tok1", *s.GitHub.AccessToken)
}
