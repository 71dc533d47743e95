// Package main is the entry point for the fsgate MCP server.
//
// Startup sequence:
//
// 1. Initialize logging (stderr; stdout belongs to the protocol)
// 2. Load configuration: config file, then FSGATE_ROOT, then --root flag
// 3. Start the stdio MCP server and serve until EOF
//
// The allowed root directory is the only required setting. A root that does
// not exist yet is warned about rather than rejected. "fsgate init --root DIR"
// persists the root to the config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fsgate/internal/config"
	"fsgate/internal/logging"
	"fsgate/internal/mcp"
	"fsgate/pkg/fileops"
)

var (
	flagRoot   string
	flagConfig string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "fsgate",
		Short:        "MCP server exposing filesystem tools confined to one root directory",
		Long:         "fsgate serves Model Context Protocol filesystem tools (read, write, list, find) over stdio. Every operation is confined to a single allowed root directory; paths that resolve outside it through traversal or symlinks are denied.",
		Version:      mcp.Version,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", "", "allowed root directory (overrides FSGATE_ROOT and the config file)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default: XDG config location)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the config file with the given allowed root directory",
		RunE:  runInit,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	appLogger := logging.NewAppLogger()

	cfg, err := loadConfig()
	if err != nil {
		appLogger.Error("Error loading config", "error", err)
		return err
	}

	if flagRoot != "" {
		cfg.Root = fileops.ExpandPath(flagRoot)
	}
	if cfg.Root == "" {
		return fmt.Errorf("no allowed root directory configured: pass --root, set FSGATE_ROOT, or add 'root' to the config file")
	}

	appLogger.Info("Configuration loaded", "root", cfg.Root)

	srv := mcp.NewServer(cfg, appLogger)
	if err := srv.Start(); err != nil {
		appLogger.Error("Server exited with error", "error", err)
		return err
	}
	return nil
}

func runInit(cmd *cobra.Command, args []string) error {
	if flagRoot == "" {
		return fmt.Errorf("--root is required to initialize the config file")
	}

	cfg := config.DefaultConfig()
	cfg.Root = fileops.ExpandPath(flagRoot)

	path := flagConfig
	if path == "" {
		path = config.ConfigPath()
		if err := cfg.Save(); err != nil {
			return err
		}
	} else if err := cfg.SaveTo(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote config to %s\n", path)
	return nil
}

func loadConfig() (*config.Config, error) {
	if flagConfig != "" {
		cfg, err := config.LoadFrom(flagConfig)
		if err != nil {
			return nil, err
		}
		if err := cfg.ApplyEnv(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load()
}
