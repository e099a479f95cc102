package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/floreteng/bundld/internal/app"
	"github.com/floreteng/bundld/internal/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.WithError(err).Fatal("command failed")
	}
}

func newRootCmd() *cobra.Command {
	appCfg := config.AppConfig{}

	root := &cobra.Command{
		Use:           "bundld",
		Short:         "Notification bundling daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&appCfg.ConfigPath, "config", "c", "", "path to config file")

	root.AddCommand(
		newServeCmd(&appCfg),
		newMigrateCmd(&appCfg),
		newAdminCmd(&appCfg),
		newDeliverCmd(&appCfg),
	)
	return root
}

func newServeCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bundling daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.RunServer(ctx, *appCfg)
		},
	}
}

func newMigrateCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(cmd.Context(), *appCfg)
		},
	}
}

func newAdminCmd(appCfg *config.AppConfig) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	var username, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account or reset its password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.CreateAdmin(cmd.Context(), *appCfg, username, password)
		},
	}
	create.Flags().StringVarP(&username, "username", "u", "", "admin username")
	create.Flags().StringVarP(&password, "password", "p", "", "admin password")
	_ = create.MarkFlagRequired("username")
	_ = create.MarkFlagRequired("password")

	admin.AddCommand(create)
	return admin
}

func newDeliverCmd(appCfg *config.AppConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Deliver all pending bundles once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return app.DeliverNow(ctx, *appCfg)
		},
	}
}
