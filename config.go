// config.go
//
// Command-line and environment configuration.
//
// Every flag can also be set through the environment: CELEGUESS_ plus the
// flag name upper-cased with dashes turned into underscores
// (--session-size → CELEGUESS_SESSION_SIZE). A .env file in the working
// directory is loaded first.

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/rossroma/cele-guess/internal/auth"
	"github.com/rossroma/cele-guess/internal/charpool"
	"github.com/rossroma/cele-guess/internal/session"
)

const releaseVersion = "0.1.0"

type Config struct {
	bind           string
	port           int
	db             string
	data           string
	sessionSize    int
	poolSize       int
	retryDelay     time.Duration
	sessionTimeout time.Duration
	jwtSecret      string
	jwtExpires     time.Duration
	cookieSecure   bool
	clientOrigin   string
	logLevel       string
	seed           uint64
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.poolSize < session.MaxNameLen {
		return fmt.Errorf("pool size %d cannot hold a %d-character name", c.poolSize, session.MaxNameLen)
	}
	if c.sessionSize < 1 {
		return fmt.Errorf("invalid session size: %d", c.sessionSize)
	}
	if c.retryDelay <= 0 {
		return errors.New("retry delay must be positive")
	}
	if c.sessionTimeout <= 0 {
		return errors.New("session timeout must be positive")
	}
	return nil
}

func (c *Config) addr() string { return fmt.Sprintf("%s:%d", c.bind, c.port) }

// bindFlags registers the persistent flags on cmd and overlays values from
// the environment onto any flag not set on the command line.
func bindFlags(cmd *cobra.Command, cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("CELEGUESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs := cmd.PersistentFlags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: CELEGUESS_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5175, "port to listen on (env: CELEGUESS_PORT)")
	fs.StringVar(&cfg.db, "db", "./data/celeguess.db", "SQLite database path (env: CELEGUESS_DB)")
	fs.StringVar(&cfg.data, "data", "", "celebrity dataset JSON; empty uses the built-in set (env: CELEGUESS_DATA)")
	fs.IntVar(&cfg.sessionSize, "session-size", session.DefaultSize, "rounds per session (env: CELEGUESS_SESSION_SIZE)")
	fs.IntVar(&cfg.poolSize, "pool-size", charpool.DefaultSize, "characters offered per round (env: CELEGUESS_POOL_SIZE)")
	fs.DurationVar(&cfg.retryDelay, "retry-delay", session.DefaultRetryDelay, "how long a first wrong answer stays visible (env: CELEGUESS_RETRY_DELAY)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 30*time.Minute, "time before idle sessions are dropped (env: CELEGUESS_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "token signing secret (env: CELEGUESS_JWT_SECRET)")
	fs.DurationVar(&cfg.jwtExpires, "jwt-expires", auth.DefaultTTL, "token lifetime (env: CELEGUESS_JWT_EXPIRES)")
	fs.BoolVar(&cfg.cookieSecure, "cookie-secure", false, "mark cookies Secure/SameSite=None (env: CELEGUESS_COOKIE_SECURE)")
	fs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "allowed CORS origin (env: CELEGUESS_CLIENT_ORIGIN)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "trace|debug|info|warn|error (env: CELEGUESS_LOG_LEVEL)")
	fs.Uint64Var(&cfg.seed, "seed", 0, "random seed; 0 is nondeterministic (env: CELEGUESS_SEED)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}
