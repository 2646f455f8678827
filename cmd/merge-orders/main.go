// Command merge-orders merges every marketplace order export in a directory
// into one CSV over the unified variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	reconcileapp "github.com/krbiz/backend/internal/application/reconcile"
	settingsapp "github.com/krbiz/backend/internal/application/settings"
	"github.com/krbiz/backend/internal/domain/settings"
	"github.com/krbiz/backend/internal/infrastructure/cache"
	"github.com/krbiz/backend/internal/infrastructure/crypto"
	csvimport "github.com/krbiz/backend/internal/infrastructure/import"
	"github.com/krbiz/backend/internal/infrastructure/logger"
)

type options struct {
	inputDir string
	output   string
	settings string
	password string
	label    string
	cp949    bool
}

func main() {
	log, err := logger.New(&logger.Config{Level: "info", Format: "console", Output: "stderr"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if err := newRootCmd(log).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(log *zap.Logger) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "merge-orders",
		Short: "Merge marketplace order exports into one CSV",
		Long: "Reads every *.csv in the input directory, detects the marketplace of each file " +
			"from its header row and writes all orders into one table over the unified variables.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), log, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.inputDir, "input-dir", ".", "directory holding the order files")
	cmd.Flags().StringVar(&opts.output, "output", "merged.csv", "path of the merged CSV")
	cmd.Flags().StringVar(&opts.settings, "settings", "", "platform settings JSON (bundled defaults when empty)")
	cmd.Flags().StringVar(&opts.password, "password", "", "password of sealed order files")
	cmd.Flags().StringVar(&opts.label, "label", "cli", "label recorded in the merge log")
	cmd.Flags().BoolVar(&opts.cp949, "cp949", false, "write CP949 instead of UTF-8")
	return cmd
}

func run(ctx context.Context, log *zap.Logger, opts options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	settingsSvc, err := loadSettings(ctx, log, opts.settings)
	if err != nil {
		return err
	}

	uploads, err := collectOrderFiles(log, opts.inputDir, opts.password)
	if err != nil {
		return err
	}
	if len(uploads) == 0 {
		return fmt.Errorf("no order files (*.csv) in %s", opts.inputDir)
	}

	sessions := reconcileapp.NewInMemorySessionStore(time.Hour)
	defer sessions.Stop()
	svc := reconcileapp.NewService(sessions, settingsSvc, reconcileapp.Config{},
		reconcileapp.WithParser(csvimport.NewCSVParser()),
		reconcileapp.WithDecryptor(crypto.NewSealedFileDecryptor()),
		reconcileapp.WithLogger(log),
	)

	session := svc.CreateSession()
	if _, err := svc.UploadOrderFiles(ctx, session.ID, uploads); err != nil {
		return err
	}
	result, err := svc.MergeOrders(ctx, session.ID, opts.label)
	if err != nil {
		return err
	}
	if result.File.Rows() == 0 {
		return errors.New("no order file matched a configured platform")
	}

	var writeOpts []csvimport.WriteOption
	if opts.cp949 {
		writeOpts = append(writeOpts, csvimport.WithCP949())
	}
	data, err := csvimport.EncodeTable(result.File.Table, writeOpts...)
	if err != nil {
		return fmt.Errorf("encode merged table: %w", err)
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}

	_, _ = fmt.Fprintf(out, "merged %d orders from %d files into %s (%d skipped)\n",
		result.File.Rows(), len(result.Previews), opts.output, result.Skipped.Count())
	return nil
}

// loadSettings builds a settings service over memory, seeded with the
// platform document at path when given
func loadSettings(ctx context.Context, log *zap.Logger, path string) (*settingsapp.Service, error) {
	store := cache.NewInMemorySettingsStore()
	svc := settingsapp.NewService(store, log)
	if path == "" {
		return svc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	if err := store.Set(ctx, settings.KeyOrderHeaderVariables, string(data)); err != nil {
		return nil, err
	}
	if _, err := svc.PlatformRegistry(ctx); err != nil {
		return nil, fmt.Errorf("settings %s: %w", path, err)
	}
	return svc, nil
}

// collectOrderFiles reads the CSV files of dir in name order, leaving out
// spreadsheet lock files
func collectOrderFiles(log *zap.Logger, dir, password string) ([]reconcileapp.Upload, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var uploads []reconcileapp.Upload
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.HasPrefix(name, "~") {
			log.Info("Lock file ignored", zap.String("file", name))
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		if len(data) == 0 {
			log.Warn("Empty order file ignored", zap.String("file", name))
			continue
		}
		uploads = append(uploads, reconcileapp.Upload{Name: name, Data: data, Password: password})
	}
	return uploads, nil
}
