package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/itchan-dev/bbs/backend/internal/setup"
	"github.com/itchan-dev/bbs/backend/internal/storage/pg"
	"github.com/itchan-dev/bbs/shared/config"
	"github.com/itchan-dev/bbs/shared/domain"
	jwt_internal "github.com/itchan-dev/bbs/shared/jwt"
	"github.com/itchan-dev/bbs/shared/logger"
	sharedpg "github.com/itchan-dev/bbs/shared/storage/pg"
	"github.com/spf13/cobra"
)

var configFolder string

func main() {
	rootCommand := &cobra.Command{
		Use:   "bbs-admin",
		Short: "Administration commands for the board server",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger.Initialize("warn", false)
		},
	}
	rootCommand.PersistentFlags().StringVar(&configFolder, "config_folder", "backend/config", "path to folder with configs")

	rootCommand.AddCommand(migrateCommand(), tokenCommand(), squishCommand(), remoteCommand())

	if err := rootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (*pg.Storage, error) {
	if cfg.Public.Storage != config.StoragePg {
		return nil, fmt.Errorf("storage is %q, admin commands need pg", cfg.Public.Storage)
	}
	db, err := sharedpg.Connect(ctx, cfg, sharedpg.LightweightConnectionConfig())
	if err != nil {
		return nil, err
	}
	return pg.NewFromDB(db), nil
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(configFolder)
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer storage.Cleanup()

			if err := storage.Migrate(ctx); err != nil {
				return err
			}
			fmt.Println("Schema applied.")
			return nil
		},
	}
}

func tokenCommand() *cobra.Command {
	var id int64
	var perms string
	var superAdmin bool

	cmd := &cobra.Command{
		Use:   "token [name]",
		Short: "Mint an access token for a subject",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFolder)
			if err != nil {
				return err
			}
			subject := domain.Subject{
				Id:          id,
				Name:        args[0],
				Permissions: splitPerms(perms),
				SuperAdmin:  superAdmin,
			}
			token, err := jwt_internal.New(cfg.JwtKey(), cfg.JwtTTL()).NewToken(subject)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "subject id")
	cmd.Flags().StringVar(&perms, "perms", "", "comma separated permissions, e.g. Admin,Staff")
	cmd.Flags().BoolVar(&superAdmin, "super", false, "mark the subject as super-admin")
	cmd.MarkFlagRequired("id")
	return cmd
}

func squishCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "squish [board]",
		Short: "Renumber a board's posts from 1 with no gaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(configFolder)
			if err != nil {
				return err
			}
			storage, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer storage.Cleanup()

			deps := setup.Build(cfg, storage)
			defer deps.Cleanup()

			root := domain.Subject{Name: "bbs-admin", SuperAdmin: true}
			board, n, err := deps.Board.SquishPosts(ctx, root, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Renumbered %d posts on %s (%s).\n", n, board.Alias(), board.Name)
			return nil
		},
	}
}

func splitPerms(s string) domain.Permissions {
	var perms domain.Permissions
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}
