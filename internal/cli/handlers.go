package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BartekS5/docshift/internal/config"
	"github.com/BartekS5/docshift/internal/provider"
	"github.com/BartekS5/docshift/pkg/logger"
	"github.com/spf13/cobra"
)

// app is the runtime every command works against.
type app struct {
	cfg      *config.Config
	registry *provider.Registry
}

func openApp(ctx context.Context, opts *GlobalOptions) (*app, error) {
	cfg, err := config.LoadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if opts.LogLevel == "" && opts.LogFile == "" && (cfg.LogLevel != "" || cfg.LogFile != "") {
		if err := logger.InitLogger(cfg.LogFile, cfg.LogLevel); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	registry, err := provider.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, registry: registry}, nil
}

func (a *app) Close() {
	if err := a.registry.Close(context.Background()); err != nil {
		logger.Warnf("Failed to close providers: %v", err)
	}
}

// withApp runs fn with an opened app and a context cancelled on SIGINT/SIGTERM.
func withApp(cmd *cobra.Command, opts *GlobalOptions, fn func(ctx context.Context, a *app) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

// tables returns the tables named by flag, or every table of provider when
// the flag is empty.
func (a *app) tables(ctx context.Context, provider string, flag []string) ([]string, error) {
	if tables := splitList(flag); len(tables) > 0 {
		return tables, nil
	}
	if provider == "" {
		provider = a.registry.Default()
	}
	tables, err := a.registry.Tables(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("no --tables given and %w", err)
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no --tables given and provider %s holds no tables", provider)
	}
	logger.Infof("No --tables given; using all %d tables of %s", len(tables), provider)
	return tables, nil
}

// splitList parses comma separated flag values, dropping blanks.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}
