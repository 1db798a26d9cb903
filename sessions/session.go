package sessions

import "time"

// Provider identifies one of the linkable search integrations. The set is
// closed: every credential read, merge-patch and unlink goes through an
// exhaustive switch, so a mistyped provider can never touch another
// provider's fields.
type Provider string

const (
	ProviderGitHub      Provider = "github"
	ProviderNotion      Provider = "notion"
	ProviderGoogleDrive Provider = "google_drive"
	ProviderGmail       Provider = "gmail"
)

// AllProviders lists every linkable provider, in display order.
var AllProviders = []Provider{ProviderGitHub, ProviderNotion, ProviderGoogleDrive, ProviderGmail}

// Valid reports whether p names a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderGitHub, ProviderNotion, ProviderGoogleDrive, ProviderGmail:
		return true
	}
	return false
}

// Credentials holds one provider's link state on a session. Nil means
// absent: an unlinked provider has every field nil, and a provider whose
// tokens never expire keeps both expiry fields nil.
type Credentials struct {
	Username              *string    `json:"username"`
	AccessToken           *string    `json:"accessToken"`
	AccessTokenExpiresAt  *time.Time `json:"accessTokenExpiresAt"`
	RefreshToken          *string    `json:"refreshToken"`
	RefreshTokenExpiresAt *time.Time `json:"refreshTokenExpiresAt"`
}

// Linked reports whether the provider currently has a usable-or-refreshable
// credential attached.
func (c Credentials) Linked() bool {
	return c.AccessToken != nil
}

// CredentialPatch is a merge-patch for one provider's credentials: only
// non-nil fields overwrite. A token refresh that omits a new refresh token
// therefore leaves the stored refresh token untouched.
type CredentialPatch struct {
	Username              *string
	AccessToken           *string
	AccessTokenExpiresAt  *time.Time
	RefreshToken          *string
	RefreshTokenExpiresAt *time.Time
}

// Session is the central record: an anonymous browser identity plus the
// per-provider OAuth credentials linked to it. The plaintext session secret
// is never stored; only its SHA-256 hash is.
type Session struct {
	ID             string    `json:"id"`
	SecretHash     []byte    `json:"secretHash"`
	CreatedAt      time.Time `json:"createdAt"`
	LastVerifiedAt time.Time `json:"lastVerifiedAt"`

	GitHub      Credentials `json:"github"`
	Notion      Credentials `json:"notion"`
	GoogleDrive Credentials `json:"googleDrive"`
	Gmail       Credentials `json:"gmail"`
}

// Credentials returns a copy of the named provider's bundle. Unknown
// providers return the zero bundle.
func (s *Session) Credentials(p Provider) Credentials {
	if c := s.bundle(p); c != nil {
		return *c
	}
	return Credentials{}
}

// Link merge-patches the named provider's credentials, leaving every other
// provider's bundle untouched. Unknown providers are a no-op.
func (s *Session) Link(p Provider, patch CredentialPatch) {
	c := s.bundle(p)
	if c == nil {
		return
	}
	if patch.Username != nil {
		c.Username = patch.Username
	}
	if patch.AccessToken != nil {
		c.AccessToken = patch.AccessToken
	}
	if patch.AccessTokenExpiresAt != nil {
		c.AccessTokenExpiresAt = patch.AccessTokenExpiresAt
	}
	if patch.RefreshToken != nil {
		c.RefreshToken = patch.RefreshToken
	}
	if patch.RefreshTokenExpiresAt != nil {
		c.RefreshTokenExpiresAt = patch.RefreshTokenExpiresAt
	}
}

// Unlink clears exactly the named provider's fields. The session itself and
// every other provider's bundle are left unchanged.
func (s *Session) Unlink(p Provider) {
	if c := s.bundle(p); c != nil {
		*c = Credentials{}
	}
}

func (s *Session) bundle(p Provider) *Credentials {
	switch p {
	case ProviderGitHub:
		return &s.GitHub
	case ProviderNotion:
		return &s.Notion
	case ProviderGoogleDrive:
		return &s.GoogleDrive
	case ProviderGmail:
		return &s.Gmail
	}
	return nil
}

// Clone returns a deep copy, so stores can hand out records without sharing
// mutable state with their internal copy.
func (s *Session) Clone() *Session {
	clone := *s
	clone.SecretHash = append([]byte(nil), s.SecretHash...)
	clone.GitHub = cloneCredentials(s.GitHub)
	clone.Notion = cloneCredentials(s.Notion)
	clone.GoogleDrive = cloneCredentials(s.GoogleDrive)
	clone.Gmail = cloneCredentials(s.Gmail)
	return &clone
}

func cloneCredentials(c Credentials) Credentials {
	return Credentials{
		Username:              clonePtr(c.Username),
		AccessToken:           clonePtr(c.AccessToken),
		AccessTokenExpiresAt:  clonePtr(c.AccessTokenExpiresAt),
		RefreshToken:          clonePtr(c.RefreshToken),
		RefreshTokenExpiresAt: clonePtr(c.RefreshTokenExpiresAt),
	}
}

func clonePtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	copied := *v
	return &copied
}
