package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-attendance-console/apiclient"
	"github.com/jrsteele09/go-attendance-console/auth"
	"github.com/jrsteele09/go-attendance-console/gate"
	"github.com/jrsteele09/go-attendance-console/identity"
	"github.com/jrsteele09/go-attendance-console/internal/config"
	"github.com/jrsteele09/go-attendance-console/redirect"
	"github.com/jrsteele09/go-attendance-console/server"
	"github.com/jrsteele09/go-attendance-console/session"
	"github.com/jrsteele09/go-attendance-console/session/filetier"
	"github.com/jrsteele09/go-attendance-console/session/memtier"
	"github.com/jrsteele09/go-attendance-console/session/redistier"
	"github.com/jrsteele09/go-attendance-console/token/refresh"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const sessionFileName = "session.json"

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("Error running console")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("Console stopped")
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

	handler, err := newConsole(c)
	if err != nil {
		return err
	}
	srv := &http.Server{Addr: c.GetPort(), Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go listenAndServe(srv)
	waitForStopSignal()
	return shutdown(srv)
}

// newConsole wires the session components for this browsing session
func newConsole(c config.Config) (http.Handler, error) {
	persistent, err := persistentTier(c)
	if err != nil {
		return nil, err
	}

	cookies := session.NewCookieMirror(c.GetCookieMaxAge())
	cookies.SetSecure(c.GetEnv() != "DEV")
	store, err := session.NewStore(memtier.New(), persistent,
		session.WithLifetime(c.GetSessionLifetime()),
		session.WithCookieMirror(cookies),
	)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: c.GetHTTPTimeout()}
	authn, err := identity.NewAuthenticator(store, []identity.Provider{
		identity.CampusProvider(c.GetCampusIdentityURL()),
		identity.AdminProvider(c.GetAdminIdentityURL()),
	}, identity.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	coordinator, err := refresh.NewCoordinator(store, c.GetAPIBaseURL(), refresh.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	api, err := apiclient.New(c.GetAPIBaseURL(), store, coordinator, apiclient.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}

	guard := redirect.NewGuard(redirect.WithCooldown(c.GetRedirectCooldown()))
	sessions, err := auth.NewSessionContext(store, authn, guard)
	if err != nil {
		return nil, err
	}
	log.Info().Str("state", sessions.Initialize().String()).Msg("Session initialised")

	edge, err := edgeGate(c)
	if err != nil {
		return nil, err
	}

	srv, err := server.New(c, server.Deps{
		Sessions: sessions,
		Store:    store,
		Guard:    guard,
		API:      api,
		Edge:     edge,
	})
	if err != nil {
		return nil, err
	}
	return srv, nil
}

func persistentTier(c config.Config) (session.Tier, error) {
	if c.GetSessionBackend() == config.SessionBackendRedis {
		tier, err := redistier.NewFromURL(c.GetRedisURL(), redistier.WithTTL(c.GetSessionLifetime()))
		if err != nil {
			return nil, fmt.Errorf("redis session tier: %w", err)
		}
		log.Info().Msg("Persisting sessions in redis")
		return tier, nil
	}

	tier, err := filetier.New(filepath.Join(c.GetDataFolder(), sessionFileName))
	if err != nil {
		return nil, fmt.Errorf("file session tier: %w", err)
	}
	log.Info().Str("path", tier.Path()).Msg("Persisting sessions to file")
	return tier, nil
}

func edgeGate(c config.Config) (*gate.EdgeGate, error) {
	rules, err := config.LoadRouteRules(c.GetRouteRulesFile())
	if err != nil {
		return nil, err
	}
	return gate.NewEdgeGateFromConfig(rules), nil
}

func setupLogging(c config.Config) {
	level, err := zerolog.ParseLevel(c.GetLogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.GetEnv() == "DEV" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func listenAndServe(server *http.Server) {
	log.Info().Str("addr", server.Addr).Msg("Console listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
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
