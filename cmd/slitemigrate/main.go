// Command slitemigrate is a thin CLI wrapper around sqlitemigrate: it
// discovers *.sql files, opens the target database, and prints the report.
// It deliberately carries none of the differ/planner/executor logic —
// that lives entirely in the sqlitemigrate package and its internal
// components, per spec's "out of scope: CLI argument parser".
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tordrt/sqlitemigrate"
	"github.com/tordrt/sqlitemigrate/internal/errs"
	"github.com/tordrt/sqlitemigrate/internal/formatter"
	"github.com/tordrt/sqlitemigrate/internal/sqliteconn"
)

var (
	dbPath        string
	schemaPaths   []string
	mode          string
	format        string
	ignoreObjects []string
	extensions    []string
	ignoreFK      bool
	ignoreRefs    bool
	vacuum        bool
	verbose       bool
)

var rootCmd = &cobra.Command{
	Use:   "slitemigrate",
	Short: "Declarative schema migration for SQLite",
	Long:  `slitemigrate compares the DDL you author against a live SQLite database and applies the minimum sequence of statements that brings the database in line with it.`,
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to the SQLite database file (required)")
	rootCmd.Flags().StringSliceVar(&schemaPaths, "schema", nil, "*.sql file(s) or directories to concatenate into the target schema (required)")
	rootCmd.Flags().StringVar(&mode, "mode", "apply", "apply, dry-run, or script-only")
	rootCmd.Flags().StringVarP(&format, "format", "f", "text", "report format: text or markdown")
	rootCmd.Flags().StringSliceVar(&ignoreObjects, "ignore", nil, "regular expression(s) matched against \"kind:name\", excluded from the diff")
	rootCmd.Flags().StringSliceVar(&extensions, "extension", nil, "shared-library extension(s) to load before reading the live schema")
	rootCmd.Flags().BoolVar(&ignoreFK, "ignore-fk-violations", false, "log foreign_key_check violations instead of failing the migration")
	rootCmd.Flags().BoolVar(&ignoreRefs, "ignore-unknown-references", false, "log foreign keys to tables absent from the target schema instead of failing")
	rootCmd.Flags().BoolVar(&vacuum, "vacuum", false, "VACUUM after a successful apply that changed something")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "emit structured step-by-step logging")
	_ = rootCmd.MarkFlagRequired("db")
	_ = rootCmd.MarkFlagRequired("schema")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	m, err := parseMode(mode)
	if err != nil {
		return err
	}

	targetSQL, err := readSchemaFiles(schemaPaths)
	if err != nil {
		return fmt.Errorf("failed to read schema files: %w", err)
	}

	log := zap.NewNop()
	if verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		log = l
		defer func() { _ = log.Sync() }()
	}

	db, err := sqliteconn.Open(dbPath, extensions)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	conn, err := sqliteconn.PinnedConn(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	report, migrateErr := sqlitemigrate.Migrate(ctx, conn, targetSQL, m, &sqlitemigrate.Options{
		IgnoreObjects:           ignoreObjects,
		Extensions:              extensions,
		IgnoreFKViolations:      ignoreFK,
		IgnoreUnknownReferences: ignoreRefs,
		Vacuum:                  vacuum,
		Logger:                  log,
	})
	if report == nil {
		return migrateErr
	}

	if err := printReport(report); err != nil {
		return fmt.Errorf("failed to format report: %w", err)
	}
	return migrateErr
}

func parseMode(s string) (sqlitemigrate.Mode, error) {
	switch strings.ToLower(s) {
	case "apply":
		return sqlitemigrate.ModeApply, nil
	case "dry-run", "dryrun":
		return sqlitemigrate.ModeDryRun, nil
	case "script-only", "scriptonly":
		return sqlitemigrate.ModeScriptOnly, nil
	default:
		return "", fmt.Errorf("invalid mode: %s (must be apply, dry-run, or script-only)", s)
	}
}

func printReport(report *sqlitemigrate.MigrationReport) error {
	if mode == "script-only" {
		fmt.Print(report.SQL)
		return nil
	}
	switch format {
	case "text":
		return formatter.NewTextFormatter(os.Stdout).Format(report.Changes, report.Steps, string(report.Outcome))
	case "markdown":
		return formatter.NewMarkdownFormatter(os.Stdout).Format(report.Changes, report.Steps, string(report.Outcome))
	default:
		return fmt.Errorf("invalid format: %s (must be text or markdown)", format)
	}
}

// readSchemaFiles discovers *.sql files under each of paths (a file is
// used directly, a directory is walked non-recursively for *.sql entries)
// and concatenates them, sorted by path for determinism, into one target
// schema string. This is the minimal file-discovery a runnable cmd/ needs;
// its policy (header stripping, recursive walking, watch mode) belongs to
// the external collaborator spec §1 excludes from the core's scope.
func readSchemaFiles(paths []string) (string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return "", err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := os.ReadDir(p)
		if err != nil {
			return "", err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
				continue
			}
			files = append(files, filepath.Join(p, e.Name()))
		}
	}
	sort.Strings(files)

	var sb strings.Builder
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return "", err
		}
		sb.Write(b)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps a migration error to the CLI exit codes spec §6 assigns:
// 0 success, 2 IntegrityViolation, 3 Busy, 1 everything else.
func exitCode(err error) int {
	switch errs.KindOf(err) {
	case errs.KindIntegrityViolation:
		return 2
	case errs.KindBusy:
		return 3
	default:
		return 1
	}
}
