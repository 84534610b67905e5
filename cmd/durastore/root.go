package main

import (
	"fmt"

	"github.com/cuemby/durastore/pkg/engine"
	"github.com/cuemby/durastore/pkg/log"
	"github.com/cuemby/durastore/pkg/storage"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "durastore",
	Short: "durastore - per-object transactional storage engine",
	Long: `durastore is a per-object transactional key/value storage engine:
a write-coalescing shadow buffer, optimistic-concurrency transactions, and
an alarm scheduler sitting on top of a pluggable in-memory or on-disk
backing store.

This CLI operates a single object's engine at a time, for interactive
exploration and scripted fixtures.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"durastore version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("backend", "memory", "Backing store: memory or bbolt")
	rootCmd.PersistentFlags().String("db-path", "durastore.db", "bbolt database path (when --backend=bbolt)")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(alarmCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(serveCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// openEngine opens a fresh engine for objectKey against the backend named
// by the root --backend/--db-path flags. Callers must Close it.
func openEngine(cmd *cobra.Command, objectKey string, opts ...engine.Option) (*engine.Engine, error) {
	backend, _ := cmd.Flags().GetString("backend")
	dbPath, _ := cmd.Flags().GetString("db-path")

	store, err := openStore(backend, dbPath, objectKey)
	if err != nil {
		return nil, err
	}
	return engine.New(objectKey, store, opts...), nil
}

func openStore(backend, dbPath, objectKey string) (storage.Store, error) {
	switch backend {
	case "memory", "":
		return storage.NewMemoryStore(), nil
	case "bbolt":
		factory, err := storage.OpenBoltFactory(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open bbolt factory: %w", err)
		}
		return factory.Open(objectKey)
	default:
		return nil, fmt.Errorf("unknown backend %q (want memory or bbolt)", backend)
	}
}
