package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rossroma/cele-guess/internal/celebs"
	"github.com/rossroma/cele-guess/internal/charpool"
	"github.com/rossroma/cele-guess/internal/names"
)

func newPoolCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "pool NAME|ID",
		Short: "Print a generated character pool for a dataset entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := loadCelebrities(cfg)
			if err != nil {
				return err
			}
			target, ok := findCelebrity(all, args[0])
			if !ok {
				return fmt.Errorf("no celebrity named or identified %q", args[0])
			}

			gen := charpool.New(cfg.source(), charpool.WithSize(cfg.poolSize))
			pool, err := gen.Generate(target, all)
			if err != nil {
				return fmt.Errorf("%s (%s): %w", target.Name, names.Classify(target.Name), err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s [%s] %d entries\n", target.Name, names.Classify(target.Name), len(pool))
			fmt.Fprintln(out, strings.Join(pool, " "))
			return nil
		},
	}
}

func findCelebrity(all []celebs.Celebrity, key string) (celebs.Celebrity, bool) {
	for _, c := range all {
		if c.ID == key || c.Name == key {
			return c, true
		}
	}
	return celebs.Celebrity{}, false
}
