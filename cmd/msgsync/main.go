package main

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"msgsync/internal/app"
	"msgsync/pkg/config"
	"msgsync/pkg/logger"
	"msgsync/pkg/shutdown"
)

// version is set via ldflags during release builds.
var version = "dev"

func main() {
	_ = godotenv.Load(".env")

	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	// explicit flags win over config/env
	if setFlags["addr"] && addrVal != "" {
		host, port, ok := strings.Cut(addrVal, ":")
		if !ok {
			log.Fatalf("invalid -addr %q, want host:port", addrVal)
		}
		p, perr := strconv.Atoi(port)
		if perr != nil {
			log.Fatalf("invalid -addr port %q", port)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if setFlags["db"] && dbVal != "" {
		cfg.Server.DBPath = dbVal
	}

	logger.Init(cfg.Logging.Level)
	defer logger.Sync()

	a, err := app.New(*cfg, version)
	if err != nil {
		shutdown.Abort("startup failed", err, cfg.Server.DBPath)
	}

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	if err := a.Run(ctx); err != nil {
		shutdown.Abort("server error", err, cfg.Server.DBPath)
	}
}
