package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shunseii/bahar-sub001/internal/app"
	"github.com/Shunseii/bahar-sub001/internal/config"
	"github.com/Shunseii/bahar-sub001/internal/impex"
	"github.com/Shunseii/bahar-sub001/internal/logging"
	"github.com/Shunseii/bahar-sub001/internal/schema"
	"github.com/Shunseii/bahar-sub001/internal/ui"
)

var (
	configPath string
	jsonOutput bool
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bahar",
	Short: "Offline-first Arabic vocabulary dictionary with spaced repetition",
	Long: `bahar keeps an Arabic-English dictionary in a local SQLite database,
searches it with typo tolerance in both scripts, and schedules flashcard
reviews with FSRS.

The database can run standalone or as an embedded replica of a remote
libSQL primary (database.mode: replica), in which case 'bahar sync' and
'bahar daemon' keep it in step with other devices.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ui.Init(os.Stdout)
		if cmd == initCmd {
			return
		}
		loadConfig(configPath)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "dict", Title: "Dictionary:"},
		&cobra.Group{ID: "review", Title: "Review:"},
		&cobra.Group{ID: "data", Title: "Import, export and sync:"},
		&cobra.Group{ID: "advanced", Title: "Advanced:"},
	)

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default $XDG_CONFIG_HOME/bahar/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig fills cfg and logger or exits.
func loadConfig(path string) {
	c, err := config.Load(path)
	if err != nil {
		fatalf("%v", err)
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	l, err := logging.New(c.Log)
	if err != nil {
		fatalf("failed to set up logging: %v", err)
	}
	cfg, logger = c, l
}

// openApp opens the dictionary described by cfg or exits.
func openApp(ctx context.Context) *app.App {
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fatalf("%v", err)
	}
	return a
}

func closeApp(a *app.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderWarn("⚠"), err)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ui.RenderFail("Error:"), fmt.Sprintf(format, args...))
	os.Exit(1)
}

// fatalErr prints err, expanding field-level validation failures.
func fatalErr(action string, err error) {
	var ve *schema.ValidationError
	var ie *impex.ImportError
	switch {
	case errors.As(err, &ve):
		printFieldErrors(ve.Errors)
	case errors.As(err, &ie) && len(ie.Errors) > 0:
		printFieldErrors(ie.Errors)
	case errors.Is(err, schema.ErrNotFound):
		fatalf("%s: not found", action)
	}
	fatalf("%s: %v", action, err)
}

func printFieldErrors(errs []schema.FieldError) {
	for _, fe := range errs {
		fmt.Fprintf(os.Stderr, "  %s %s: %s\n", ui.RenderFail("✗"), fe.Field, fe.Message)
	}
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatalf("failed to encode JSON: %v", err)
	}
}
