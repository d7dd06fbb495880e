package main

import (
	"fmt"
	"os"

	"github.com/anishghanwat/storemybottle/internal/catalog"
	"github.com/anishghanwat/storemybottle/internal/clock"
	"github.com/anishghanwat/storemybottle/internal/config"
	"github.com/anishghanwat/storemybottle/internal/db"
	"github.com/anishghanwat/storemybottle/internal/events"
	"github.com/anishghanwat/storemybottle/internal/ledger"
	"github.com/anishghanwat/storemybottle/internal/migration"
	"github.com/anishghanwat/storemybottle/internal/observability/logger"
	"github.com/anishghanwat/storemybottle/internal/observability/metrics"
	"github.com/anishghanwat/storemybottle/internal/purchase"
	"github.com/anishghanwat/storemybottle/internal/query"
	"github.com/anishghanwat/storemybottle/internal/redemption"
	"github.com/anishghanwat/storemybottle/internal/scheduler"
	"github.com/anishghanwat/storemybottle/internal/seed"
	"github.com/anishghanwat/storemybottle/internal/server"
	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "storemybottle",
		Short:   "Bottle pre-purchase and peg redemption service",
		Version: version,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run migrations and start the HTTP API",
		RunE: func(*cobra.Command, []string) error {
			app := fx.New(
				config.Module,
				logger.Module,
				metrics.Module,
				fx.Provide(registerSnowflake),
				db.Module,
				clock.Module,

				catalog.Module,
				ledger.Module,
				purchase.Module,
				redemption.Module,
				query.Module,
				events.Module,
				scheduler.Module,

				fx.Invoke(func(conn *gorm.DB) error {
					sqlDB, err := conn.DB()
					if err != nil {
						return err
					}
					return migration.RunMigrations(sqlDB)
				}),
				server.Module,
			)
			app.Run()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			return withDatabase(func(conn *gorm.DB) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				return migration.RunMigrations(sqlDB)
			})
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the demo venue and bottle catalog",
		RunE: func(*cobra.Command, []string) error {
			return withDatabase(func(conn *gorm.DB) error {
				sqlDB, err := conn.DB()
				if err != nil {
					return err
				}
				if err := migration.RunMigrations(sqlDB); err != nil {
					return err
				}
				return seed.EnsureDemoCatalog(conn)
			})
		},
	}
}

func withDatabase(fn func(*gorm.DB) error) error {
	cfg, err := config.Load("")
	if err != nil {
		return err
	}
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	conn, err := db.Open(cfg, log)
	if err != nil {
		return err
	}
	return fn(conn)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
