package server

import "github.com/onesearch/onesearch/sessions"

func (s *Server) initRoutes() {
	api := s.APIMiddleware()

	// OAuth flow: initiate
	s.RegisterRouteHandler("GET "+RouteLoginGitHub, ChainMiddleware(s.LoginHandler(sessions.ProviderGitHub), api...))
	s.RegisterRouteHandler("GET "+RouteLoginNotion, ChainMiddleware(s.LoginHandler(sessions.ProviderNotion), api...))
	s.RegisterRouteHandler("GET "+RouteLoginGoogleDrive, ChainMiddleware(s.LoginHandler(sessions.ProviderGoogleDrive), api...))
	s.RegisterRouteHandler("GET "+RouteLoginGmail, ChainMiddleware(s.LoginHandler(sessions.ProviderGmail), api...))

	// OAuth flow: callbacks
	s.RegisterRouteHandler("GET "+RouteCallbackGitHub, ChainMiddleware(s.GitHubCallbackHandler(), api...))
	s.RegisterRouteHandler("GET "+RouteCallbackGoogle, ChainMiddleware(s.GoogleCallbackHandler(), api...))
	s.RegisterRouteHandler("GET "+RouteCallbackNotion, ChainMiddleware(s.NotionCallbackHandler(), api...))

	// Session / integration API
	s.RegisterRouteHandler("POST "+RouteUnlink, ChainMiddleware(s.UnlinkHandler(), api...))
	s.RegisterRouteHandler("GET "+RouteAccessToken, ChainMiddleware(s.AccessTokenHandler(), api...))
	s.RegisterRouteHandler("GET "+RouteSession, ChainMiddleware(s.SessionStatusHandler(), api...))

	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
}
