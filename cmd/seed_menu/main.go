// Command seed_menu loads the default settings and menu tree into the
// configured database. With --replace the current menu is dropped first.
package main

import (
	"context"
	"os"

	"whatsapp-assistant/internal/config"
	"whatsapp-assistant/internal/database"
	"whatsapp-assistant/internal/logging"

	"github.com/spf13/cobra"
)

func main() {
	var (
		file    string
		replace bool
	)

	cmd := &cobra.Command{
		Use:           "seed_menu",
		Short:         "Seed default settings and the menu tree",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			logger := logging.New(cfg.LogLevel)
			if file == "" {
				file = cfg.SeedFile
			}

			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			store := database.NewStore(db)

			seed, err := database.LoadSeed(file)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if replace {
				if err := database.ReplaceMenu(ctx, store, seed.Menu); err != nil {
					return err
				}
				logger.Info("menu replaced", "top_level", len(seed.Menu))
			}
			if err := database.Seed(ctx, store, seed); err != nil {
				return err
			}
			logger.Info("seed complete", "file", file)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML seed file (default: SEED_FILE or the built-in defaults)")
	cmd.Flags().BoolVar(&replace, "replace", false, "drop the existing menu and stored positions first")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		logging.New("error").Error("seed failed", "error", err)
		os.Exit(1)
	}
}
