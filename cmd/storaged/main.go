package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pixelforge/cms-storage-backend/common"
	"github.com/pixelforge/cms-storage-backend/config"
	"github.com/pixelforge/cms-storage-backend/httpserver"
	"github.com/pixelforge/cms-storage-backend/interfaces"
	"github.com/pixelforge/cms-storage-backend/registry"
	"github.com/pixelforge/cms-storage-backend/storage"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for the admin API",
	},
	&cli.StringFlag{
		Name:  "storage-config",
		Value: "data/storage-config.json",
		Usage: "path to the persisted storage configuration record",
	},
	&cli.StringFlag{
		Name:  "local-root",
		Value: "data/assets",
		Usage: "root directory for local-disk storage (the universal fallback)",
	},
	&cli.StringFlag{
		Name:  "local-url-base",
		Value: "/assets",
		Usage: "URL base for locally served assets",
	},
	&cli.StringFlag{
		Name:  "clouddrive-base-url",
		Value: "",
		Usage: "base URL of the cloud drive HTTP API",
	},
	&cli.StringFlag{
		Name:  "vault-addr",
		Value: "",
		Usage: "Vault address for connection credential resolution (optional)",
	},
	&cli.StringFlag{
		Name:    "vault-token",
		Value:   "",
		Usage:   "Vault token",
		EnvVars: []string{"VAULT_TOKEN"},
	},
	&cli.StringFlag{
		Name:  "vault-mount",
		Value: "secret",
		Usage: "Vault KV v2 mount path",
	},
	&cli.StringFlag{
		Name:  "vault-path",
		Value: "storage-connections",
		Usage: "path under the Vault mount holding connection secrets",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.StringFlag{
		Name:  "log-service",
		Value: common.PackageName,
		Usage: "add 'service' tag to logs",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:  "storaged",
		Usage: "Serve the asset storage orchestration API",
		Flags: flags,
		Action: func(cCtx *cli.Context) error {
			listenAddr := cCtx.String("listen-addr")
			configPath := cCtx.String("storage-config")
			localRoot := cCtx.String("local-root")
			localURLBase := cCtx.String("local-url-base")
			driveBaseURL := cCtx.String("clouddrive-base-url")
			vaultAddr := cCtx.String("vault-addr")
			logJSON := cCtx.Bool("log-json")
			logDebug := cCtx.Bool("log-debug")
			logUID := cCtx.Bool("log-uid")
			logService := cCtx.String("log-service")
			enablePprof := cCtx.Bool("pprof")
			drainDuration := time.Duration(cCtx.Int64("drain-seconds")) * time.Second

			logger := common.SetupLogger(&common.LoggingOpts{
				Debug:   logDebug,
				JSON:    logJSON,
				Service: logService,
				Version: common.Version,
			})
			if logUID {
				id := uuid.Must(uuid.NewRandom())
				logger = logger.With("uid", id.String())
			}

			// Storage configuration: always loadable, synthesized when
			// missing or corrupt.
			cfgStore, err := config.Load(configPath, logger)
			if err != nil {
				logger.Error("Failed to load storage configuration", "err", err)
				return err
			}

			// Tenant overrides live in the in-memory registry; connection
			// secrets come from Vault when configured.
			tenants := registry.NewStaticRegistry()
			var connections interfaces.ConnectionRegistry = tenants
			if vaultAddr != "" {
				vaultToken := cCtx.String("vault-token")
				if vaultToken == "" {
					return fmt.Errorf("vault-token is required when vault-addr is set")
				}
				vaultRegistry, err := registry.NewVaultConnectionRegistry(
					vaultAddr, vaultToken,
					cCtx.String("vault-mount"), cCtx.String("vault-path"), logger)
				if err != nil {
					logger.Error("Failed to create Vault connection registry", "err", err)
					return err
				}
				connections = vaultRegistry
				logger.Info("Resolving connection credentials from Vault", "address", vaultAddr)
			}

			observer, err := storage.NewPrometheusObserver("", nil)
			if err != nil {
				logger.Error("Failed to register storage metrics", "err", err)
				return err
			}

			manager, err := storage.NewManager(storage.ManagerOptions{
				Config:            cfgStore,
				Tenants:           tenants,
				Connections:       connections,
				Observer:          observer,
				LocalRoot:         localRoot,
				LocalURLBase:      localURLBase,
				CloudDriveBaseURL: driveBaseURL,
			}, logger)
			if err != nil {
				logger.Error("Failed to create storage manager", "err", err)
				return err
			}

			admin := httpserver.NewAdminHandler(cfgStore, manager, logger)
			server, err := httpserver.New(&httpserver.HTTPServerConfig{
				ListenAddr:               listenAddr,
				Log:                      logger,
				EnablePprof:              enablePprof,
				DrainDuration:            drainDuration,
				GracefulShutdownDuration: 30 * time.Second,
				ReadTimeout:              60 * time.Second,
				WriteTimeout:             30 * time.Second,
			}, admin)
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			server.RunInBackground()
			logger.Info("Storage orchestration service started",
				"listenAddr", listenAddr,
				"configVersion", cfgStore.Version())

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
			<-exit

			logger.Info("Shutting down")
			server.Shutdown()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
