package main

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rossroma/cele-guess/internal/auth"
	"github.com/rossroma/cele-guess/internal/db"
	"github.com/rossroma/cele-guess/internal/httpserver"
	"github.com/rossroma/cele-guess/internal/scores"
)

func newServeCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			all, err := loadCelebrities(cfg)
			if err != nil {
				return err
			}

			conn, err := db.OpenMigrated(ctx, cfg.db)
			if err != nil {
				return err
			}
			defer conn.Close()

			if cfg.jwtSecret == "" {
				log.Warn().Msg("no jwt secret configured, using the development default")
			}
			au := auth.NewService(auth.NewUsers(conn), auth.Config{
				Secret: cfg.jwtSecret,
				TTL:    cfg.jwtExpires,
				Secure: cfg.cookieSecure,
			})

			srv := httpserver.New(all, scores.NewStore(conn), au, httpserver.Options{
				SessionSize:    cfg.sessionSize,
				PoolSize:       cfg.poolSize,
				RetryDelay:     cfg.retryDelay,
				SessionTimeout: cfg.sessionTimeout,
				ClientOrigin:   cfg.clientOrigin,
				Source:         cfg.source(),
			})

			log.Info().Str("addr", cfg.addr()).Str("db", cfg.db).Msg("starting cele-guess")
			if err := srv.Start(ctx, cfg.addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			log.Info().Msg("server stopped")
			return nil
		},
	}
}
