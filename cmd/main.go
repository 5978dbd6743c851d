package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
	"github.com/sksmith/go-stock-ledger/api"
	"github.com/sksmith/go-stock-ledger/config"
)

const shutdownTimeout = 10 * time.Second

func main() {
	routes := flag.Bool("routes", false, "Print the api routes as markdown and exit.")
	port := flag.String("port", "", "Port to listen on, overrides the port configuration.")
	profile := flag.String("profile", "", "Running profile, overrides the profile configuration.")
	inMemory := flag.Bool("inmemory", false, "Use the in memory database, overrides db.inMemory.")
	flag.Parse()

	overrides := make(map[string]interface{})
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			overrides["port"] = *port
		case "profile":
			overrides["profile"] = *profile
		case "inmemory":
			overrides["db.inMemory"] = *inMemory
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load("config", overrides)

	configLogging(cfg)
	printLogHeader(cfg)
	cfg.Print()

	a, err := newApp(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start the application")
	}
	defer a.Close()

	if *routes {
		fmt.Println(api.RoutesDoc(a.router))
		return
	}

	a.consumeSales(ctx)
	serve(ctx, cfg, a.router)
}

func serve(ctx context.Context, cfg *config.Config, h http.Handler) {
	srv := &http.Server{Addr: ":" + cfg.Port.Value, Handler: h}

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("failed to shut down cleanly")
		}
	}()

	log.Info().Str("port", cfg.Port.Value).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("server stopped")
	}
}

func printLogHeader(cfg *config.Config) {
	if cfg.Log.Structured.Value {
		log.Info().Str("application", cfg.AppName.Value).
			Str("revision", cfg.Revision.Value).
			Str("version", cfg.AppVersion.Value).
			Str("sha1ver", cfg.Sha1Version.Value).
			Str("build-time", cfg.BuildTime.Value).
			Str("profile", cfg.Profile.Value).
			Str("config-source", cfg.Config.Source.Value).
			Str("config-branch", cfg.Config.Spring.Branch.Value).
			Bool("in-memory-db", cfg.Db.InMemory.Value).
			Send()
	} else {
		f := figure.NewFigure(cfg.AppName.Value, "", true)
		f.Print()

		log.Info().Msg("=============================================")
		log.Info().Msg(fmt.Sprintf("       Revision: %s", cfg.Revision.Value))
		log.Info().Msg(fmt.Sprintf("        Profile: %s", cfg.Profile.Value))
		log.Info().Msg(fmt.Sprintf("  Config Server: %s - %s", cfg.Config.Source.Value, cfg.Config.Spring.Branch.Value))
		log.Info().Msg(fmt.Sprintf("    Tag Version: %s", cfg.AppVersion.Value))
		log.Info().Msg(fmt.Sprintf("   Sha1 Version: %s", cfg.Sha1Version.Value))
		log.Info().Msg(fmt.Sprintf("     Build Time: %s", cfg.BuildTime.Value))
		log.Info().Msg(fmt.Sprintf("   In Memory Db: %t", cfg.Db.InMemory.Value))
		log.Info().Msg("=============================================")
	}
}

func configLogging(cfg *config.Config) {
	log.Info().Msg("configuring logging...")

	if !cfg.Log.Structured.Value {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack

	level, err := zerolog.ParseLevel(cfg.Log.Level.Value)
	if err != nil {
		log.Warn().Str("loglevel", cfg.Log.Level.Value).Err(err).Msg("defaulting to info")
		level = zerolog.InfoLevel
	}
	log.Info().Str("loglevel", level.String()).Msg("setting log level")
	zerolog.SetGlobalLevel(level)
}
