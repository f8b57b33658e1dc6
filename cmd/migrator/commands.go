package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/magabrotheeeer/workflow-saas/internal/config"
	"github.com/magabrotheeeer/workflow-saas/internal/migrations"
	"github.com/magabrotheeeer/workflow-saas/internal/storage/repository"
)

type options struct {
	configPath string
	path       string
}

func rootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "migrator",
		Short:         "Apply or roll back workflow-saas database migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (defaults to $CONFIG_PATH)")
	cmd.PersistentFlags().StringVarP(&opts.path, "path", "p", "", "migrations directory (overrides config)")

	cmd.AddCommand(upCmd(opts), downCmd(opts), versionCmd(opts))
	return cmd
}

func upCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, path, err := open(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := migrations.Run(st.DB, path); err != nil {
				return err
			}
			cmd.Println("migrations applied")
			return nil
		},
	}
}

func downCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "down [n]",
		Short: "Roll back n migrations, or all of them when n is omitted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(args)
			if err != nil {
				return err
			}
			st, path, err := open(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := migrations.Down(st.DB, path, steps); err != nil {
				return err
			}
			if steps == 0 {
				cmd.Println("all migrations rolled back")
			} else {
				cmd.Printf("rolled back %d migration(s)\n", steps)
			}
			return nil
		},
	}
}

func versionCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, path, err := open(opts)
			if err != nil {
				return err
			}
			defer st.Close()

			v, dirty, err := migrations.Version(st.DB, path)
			if err != nil {
				return err
			}
			cmd.Printf("version %d dirty=%t\n", v, dirty)
			return nil
		},
	}
}

func parseSteps(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("steps must be a positive integer, got %q", args[0])
	}
	return n, nil
}

func open(opts *options) (*repository.Storage, string, error) {
	path := opts.configPath
	if path == "" {
		path = envConfigPath()
	}
	if path == "" {
		return nil, "", fmt.Errorf("config path is not set: use --config or CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}

	dir := cfg.MigrationsPath
	if opts.path != "" {
		dir = opts.path
	}
	st, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, "", err
	}
	return st, dir, nil
}
