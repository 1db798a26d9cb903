package config

// ProviderConfig supplies the OAuth client credentials registered with each
// provider. Google Drive and Gmail share the single Google client.
type ProviderConfig interface {
	GetGitHubClientID() string
	GetGitHubClientSecret() string
	GetGoogleClientID() string
	GetGoogleClientSecret() string
	GetNotionClientID() string
	GetNotionClientSecret() string
}

type Providers struct{}

var _ ProviderConfig = Providers{}

func (Providers) GetGitHubClientID() string {
	return GetEnv("GITHUB_CLIENT_ID", "")
}

func (Providers) GetGitHubClientSecret() string {
	return GetEnv("GITHUB_CLIENT_SECRET", "")
}

func (Providers) GetGoogleClientID() string {
	return GetEnv("GOOGLE_CLIENT_ID", "")
}

func (Providers) GetGoogleClientSecret() string {
	return GetEnv("GOOGLE_CLIENT_SECRET", "")
}

func (Providers) GetNotionClientID() string {
	return GetEnv("NOTION_CLIENT_ID", "")
}

func (Providers) GetNotionClientSecret() string {
	return GetEnv("NOTION_CLIENT_SECRET", "")
}
