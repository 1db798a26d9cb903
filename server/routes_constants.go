package server

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// OAuth login initiation, one per linkable integration
	RouteLoginGitHub      = "/api/auth/login/github"
	RouteLoginNotion      = "/api/auth/login/notion"
	RouteLoginGoogleDrive = "/api/auth/login/google-drive"
	RouteLoginGmail       = "/api/auth/login/gmail"

	// OAuth callbacks; Drive and Gmail share the Google callback
	RouteCallbackGitHub = "/api/auth/callback/github"
	RouteCallbackGoogle = "/api/auth/callback/google"
	RouteCallbackNotion = "/api/auth/callback/notion"

	// Session / integration API consumed by the search UI
	RouteUnlink      = "/api/auth/unlink/{provider}"
	RouteAccessToken = "/api/auth/token/{provider}"
	RouteSession     = "/api/session"

	RouteHealth = "/healthz"
)
