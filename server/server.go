package server

import (
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/onesearch/onesearch/auth"
	"github.com/onesearch/onesearch/internal/config"
	"github.com/onesearch/onesearch/providers"
	"github.com/onesearch/onesearch/sessions"
)

// AuthFactory builds the session manager and access-token resolver serving
// one request. Server-side store deployments return a shared pair; the
// cookie-store deployment builds a per-request pair around the request's
// cookie carrier. Handlers never learn which backend is behind it.
type AuthFactory func(carrier sessions.CookieCarrier) (*auth.Manager, *auth.Resolver)

type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	clients map[sessions.Provider]providers.Client
	newAuth AuthFactory
}

func New(cfg config.Config, clients map[sessions.Provider]providers.Client, newAuth AuthFactory) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("[Server New] config is required")
	}
	if newAuth == nil {
		return nil, fmt.Errorf("[Server New] auth factory is required")
	}
	for _, p := range sessions.AllProviders {
		if clients[p] == nil {
			return nil, fmt.Errorf("[Server New] missing provider client: %s", p)
		}
	}

	s := &Server{
		mux:     http.NewServeMux(),
		config:  cfg,
		clients: clients,
		newAuth: newAuth,
	}
	s.env = cfg.GetEnv()

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Printf("[%-19s] %s\n", displayMethod, path)
}
