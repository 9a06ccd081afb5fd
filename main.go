package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/msy-int/msy-api/internal/config"
	"github.com/msy-int/msy-api/internal/constants"
	"github.com/msy-int/msy-api/internal/observability"
	"github.com/msy-int/msy-api/internal/server"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = constants.DefaultServiceVersion

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("msy-api", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	showVersion := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage(fs)
		return 2
	}

	if *showVersion {
		fmt.Println(version)
		return 0
	}

	configFile, _ := fs.GetString(config.FlagConfig)
	envFile, _ := fs.GetString(config.FlagEnvFile)
	src := config.Sources{
		ConfigFile:   configFile,
		EnvFile:      envFile,
		BuildVersion: version,
		Flags:        fs,
	}

	cfg, err := config.LoadConfig(src)
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 1
	}

	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		log.Printf("Failed to initialize logger: %v", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	srv, err := server.New(cfg, server.WithLogger(logger), server.WithSources(src))
	if err != nil {
		logger.Error("Failed to create server", zap.Error(err))
		return 1
	}

	if cfg.Security.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.Security.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.Security.RateLimit.BurstSize),
		)
	}
	if cfg.HotReload.Enabled {
		logger.Info("Hot reload enabled", zap.String("config_file", cfg.ConfigFile))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		logger.Error("Server failed", zap.Error(err))
		return 1
	}
	return 0
}

// printUsage prints the usage information
func printUsage(fs *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	fmt.Fprint(os.Stderr, fs.FlagUsages())
	fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
	fmt.Fprintf(os.Stderr, "  %s (or %s), %s, %s\n", constants.EnvPort, constants.EnvPortFallback, constants.EnvHost, constants.EnvMetricsPort)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s, %s\n", constants.EnvReadTimeout, constants.EnvWriteTimeout, constants.EnvIdleTimeout, constants.EnvShutdownTimeout)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s, %s\n", constants.EnvServiceName, constants.EnvServiceVersion, constants.EnvLogLevel, constants.EnvLogFormat)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvMetricsEnabled, constants.EnvTracingEnabled, constants.EnvRateLimitEnabled)
	fmt.Fprintf(os.Stderr, "  %s, %s, %s\n", constants.EnvHotReload, constants.EnvTLSEnabled, constants.EnvMaxRequestSize)
	fmt.Fprintf(os.Stderr, "\nA .env file in the working directory is read first; real environment variables win.\n")
	fmt.Fprintf(os.Stderr, "\nExample usage:\n")
	fmt.Fprintf(os.Stderr, "  %s\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --port 8081 --metrics-port 9091\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --config ./msy-api.yaml --hot-reload\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  PORT=8081 %s\n", os.Args[0])
}
