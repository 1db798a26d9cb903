package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/onesearch/onesearch/auth"
	"github.com/onesearch/onesearch/internal/config"
	"github.com/onesearch/onesearch/providers"
	"github.com/onesearch/onesearch/server"
	"github.com/onesearch/onesearch/sessions"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running server")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Server stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	setupLogging(c)
	displayAppname(c.GetAppName())

	deps, err := buildDependencies(c)
	if err != nil {
		return errors.Wrap(err, "run: build dependencies")
	}

	srv, err := server.New(c, deps.clients, deps.newAuth)
	if err != nil {
		return errors.Wrap(err, "run: create server")
	}

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if deps.sweeper != nil && c.GetSweepInterval() > 0 {
		go runSweep(sweepCtx, deps.sweeper, c.GetSweepInterval())
	}

	httpServer := &http.Server{Addr: c.GetPort(), Handler: srv}
	go listenAndServe(httpServer)
	waitForStopSignal()
	return shutdown(httpServer)
}

// dependencies bundles what main wires together for the server.
type dependencies struct {
	clients map[sessions.Provider]providers.Client
	newAuth server.AuthFactory

	// sweeper drives the optional background expired-session sweep; nil for
	// the cookie backend, which has no server-side state to sweep.
	sweeper *auth.Manager
}

func buildDependencies(c config.Config) (*dependencies, error) {
	githubClient := providers.NewGitHub(c.GetGitHubClientID(), c.GetGitHubClientSecret())
	notionClient := providers.NewNotion(c.GetNotionClientID(), c.GetNotionClientSecret(), c.GetBaseURL()+server.RouteCallbackNotion)

	googleRedirect := c.GetBaseURL() + server.RouteCallbackGoogle
	driveClient := providers.NewGoogle(c.GetGoogleClientID(), c.GetGoogleClientSecret(), googleRedirect, providers.GoogleScopeDrive)
	gmailClient := providers.NewGoogle(c.GetGoogleClientID(), c.GetGoogleClientSecret(), googleRedirect, providers.GoogleScopeGmail)

	clients := map[sessions.Provider]providers.Client{
		sessions.ProviderGitHub:      githubClient,
		sessions.ProviderNotion:      notionClient,
		sessions.ProviderGoogleDrive: driveClient,
		sessions.ProviderGmail:       gmailClient,
	}

	// Notion is absent: its tokens never expire and it issues no refresh
	// tokens, so there is nothing to refresh.
	refreshers := map[sessions.Provider]auth.Refresher{
		sessions.ProviderGitHub:      githubClient,
		sessions.ProviderGoogleDrive: driveClient,
		sessions.ProviderGmail:       gmailClient,
	}

	if c.GetSessionStore() == config.StoreCookie {
		secret := c.GetCookieSigningSecret()
		if secret == "" {
			return nil, errors.New("buildDependencies: SESSION_COOKIE_SECRET is required for the cookie session store")
		}
		key, err := sessions.DeriveCookieKey([]byte(secret))
		if err != nil {
			return nil, errors.Wrap(err, "buildDependencies: derive cookie key")
		}
		maxAge := c.GetSessionMaxAge()

		// The cookie store exists per request, wrapped around that
		// request's cookie carrier.
		newAuth := func(carrier sessions.CookieCarrier) (*auth.Manager, *auth.Resolver) {
			store := sessions.NewCookieStore(carrier, key, maxAge)
			manager, _ := auth.NewManager(store)
			resolver, _ := auth.NewResolver(manager, refreshers)
			return manager, resolver
		}
		return &dependencies{clients: clients, newAuth: newAuth}, nil
	}

	store, err := newSessionStore(c)
	if err != nil {
		return nil, err
	}

	manager, err := auth.NewManager(store)
	if err != nil {
		return nil, errors.Wrap(err, "buildDependencies: create session manager")
	}
	resolver, err := auth.NewResolver(manager, refreshers)
	if err != nil {
		return nil, errors.Wrap(err, "buildDependencies: create token resolver")
	}

	newAuth := func(sessions.CookieCarrier) (*auth.Manager, *auth.Resolver) {
		return manager, resolver
	}
	return &dependencies{clients: clients, newAuth: newAuth, sweeper: manager}, nil
}

func newSessionStore(c config.Config) (sessions.Store, error) {
	switch c.GetSessionStore() {
	case config.StoreMemory:
		return sessions.NewMemoryStore(c.GetSessionMaxAge()), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{Addr: c.GetRedisAddr()})
		return sessions.NewRedisStore(client, c.GetRedisKeyPrefix(), c.GetSessionMaxAge()), nil
	case config.StoreSQLite:
		store, err := sessions.NewSQLiteStore(c.GetSQLitePath())
		if err != nil {
			return nil, errors.Wrap(err, "newSessionStore: open sqlite store")
		}
		return store, nil
	}
	return nil, errors.Errorf("newSessionStore: unknown session store %q", c.GetSessionStore())
}

// runSweep periodically deletes sessions past the inactivity timeout. Lazy
// deletion on access remains the correctness mechanism; this bounds storage
// growth from abandoned sessions.
func runSweep(ctx context.Context, manager *auth.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := manager.SweepExpired(ctx); err != nil {
				log.Err(err).Msg("expired session sweep failed")
			}
		}
	}
}

func setupLogging(c config.Config) {
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("Server listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
