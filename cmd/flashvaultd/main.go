package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"flashvault/config"
	"flashvault/core"
	"flashvault/native/vault"
	"flashvault/observability/logging"
	"flashvault/rpc"
	"flashvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("FLASHVAULT_ENV"))
	logger := logging.Setup("flashvaultd", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if cfg.Env == "" {
		cfg.Env = env
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	node, err := core.NewNode(db, cfg, logger)
	if err != nil {
		logger.Error("Failed to start node", slog.Any("error", err))
		os.Exit(1)
	}

	// Reference receiver for exercising loans end to end; integrations
	// register their own via core.Node.RegisterReceiver.
	node.RegisterReceiver("repay", vault.FullRepayReceiver{})

	logger.Info("node ready",
		"network", cfg.NetworkName,
		"authority", node.Authority().String(),
		"pool", node.ModuleAddress().String(),
	)

	server := rpc.NewServer(node, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
