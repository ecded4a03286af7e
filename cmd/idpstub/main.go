package main

import (
	"net/http"
	"os"
	"time"

	"github.com/jrsteele09/go-attendance-console/internal/config"
	"github.com/jrsteele09/go-attendance-console/internal/idpstub"
	fakeuserrepo "github.com/jrsteele09/go-attendance-console/users/repofake"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Development identity and attendance backend. Every seeded account uses
// the password from STUB_PASSWORD.
func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	opts := []idpstub.ServerOption{}
	if secret := os.Getenv("STUB_SECRET"); secret != "" {
		opts = append(opts, idpstub.WithSecret(secret))
	}
	opts = append(opts, idpstub.WithAccessTokenTTL(config.GetDurationEnv("STUB_ACCESS_TTL", 15*time.Minute)))

	stub, err := idpstub.New(fakeuserrepo.NewFakeUserRepo(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create identity stub")
	}
	if err := idpstub.DefaultAccounts(stub, config.GetEnv("STUB_PASSWORD", "rahasia")); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed accounts")
	}

	addr := config.GetEnv("STUB_ADDR", ":8081")
	log.Info().Str("addr", addr).Msg("Identity stub listening")
	srv := &http.Server{Addr: addr, Handler: stub, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server.ListenAndServe")
	}
}
