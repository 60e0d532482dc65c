package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/random"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := &Config{}
	if err := newCmd(cfg).ExecuteContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("cele-guess exited")
	}
}

func newCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cele-guess",
		Short:   "Guess the celebrity from a photo by picking the characters of their name.",
		Version: releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if lvl, err := zerolog.ParseLevel(cfg.logLevel); err == nil {
				zerolog.SetGlobalLevel(lvl)
			}
			return cfg.validate()
		},
	}
	bindFlags(cmd, cfg)

	cmd.AddCommand(newServeCmd(cfg), newPlayCmd(cfg), newPoolCmd(cfg))

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("cele-guess v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// loadCelebrities loads the dataset once and returns it.
func loadCelebrities(cfg *Config) ([]celebs.Celebrity, error) {
	if err := celebs.Init(cfg.data); err != nil {
		return nil, err
	}
	total, _ := celebs.Stats(celebs.Filters{})
	log.Info().Int("celebrities", total).Str("source", sourceName(cfg.data)).Msg("dataset loaded")
	return celebs.All(), nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

func (c *Config) source() random.Source { return random.NewSeeded(c.seed) }
