package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/5w1tchy/book-thrift/internal/api/handlers/listings"
	"github.com/5w1tchy/book-thrift/internal/api/router"
	"github.com/5w1tchy/book-thrift/internal/auth"
	"github.com/5w1tchy/book-thrift/internal/config"
	svc "github.com/5w1tchy/book-thrift/internal/listings"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/repository/sqlconnect"
	jwtutil "github.com/5w1tchy/book-thrift/internal/security/jwt"
	"github.com/5w1tchy/book-thrift/internal/security/password"
	liststore "github.com/5w1tchy/book-thrift/internal/store/listings"
	"github.com/5w1tchy/book-thrift/internal/store/users"
)

func main() {
	cfg, err := config.Load(".env", "../../.env")
	if err != nil {
		l := logging.Logger()
		l.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	log := logging.Component("main")
	for _, w := range cfg.HardeningWarnings() {
		log.Warn().Msg(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logging.Component("main")

	db, err := sqlconnect.ConnectDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlconnect.EnsureSchema(ctx, db); err != nil {
		return err
	}
	log.Info().Msg("database ready")

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}

	assets, uploads, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	userStore := users.New(db)
	signer := jwtutil.NewSigner(jwtutil.Config{
		Secret:    []byte(cfg.Auth.JWTSecret),
		AccessTTL: cfg.Auth.AccessTTL,
		ClockSkew: cfg.Auth.ClockSkew,
	})
	var refresh auth.RefreshTokens
	if rdb != nil {
		refresh = auth.NewRedisRefreshStore(rdb, cfg.Auth.RefreshTTL)
	}

	service := svc.NewService(liststore.New(db), assets, newGeocoder(cfg.Geocoder), newSummarizer(ctx, cfg.Summary))

	handler := router.New(router.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Auth:     auth.New(userStore, password.NewHasher(password.DefaultParams()), signer, refresh),
		Listings: listings.New(service, cfg.Limits.MaxUploadBytes),
		Tokens:   signer,
		Versions: userStore,
		Uploads:  uploads,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Str("storage", cfg.Storage.Driver).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
