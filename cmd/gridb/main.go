// Package main provides the gridb command-line tool.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/andreyvit/gridb"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	owner      string
	verbose    bool
	journalDir string
	syncJrnl   bool

	db *gridb.DB
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs the command line. Post-run hooks are skipped when a command
// fails, so the database is closed here instead.
func execute(rootCmd *cobra.Command) error {
	defer closeDB()
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gridb",
		Short: "Edit tables stored in a gridb database",
		Long: `gridb manipulates tables of rows, columns and cells kept in a single
database file. Rows and columns are addressed by their zero-based index.`,
		SilenceUsage:      true,
		PersistentPreRunE: openDB,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&dbPath, "db", "", "Database file (required)")
	flags.StringVar(&owner, "owner", "", "Owner whose cards to use")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log every database operation")
	flags.StringVar(&journalDir, "journal", "", "Directory of the edit journal")
	flags.BoolVar(&syncJrnl, "sync", false, "Flush every journal commit to disk")

	rootCmd.AddCommand(
		newCmd(),
		lsCmd(),
		showCmd(),
		addRowCmd(),
		addColCmd(),
		rmRowsCmd(),
		rmColsCmd(),
		moveRowCmd(),
		moveColCmd(),
		setCmd(),
		patchColCmd(),
		rmCmd(),
		statsCmd(),
		exportCmd(),
		importCmd(),
		journalCmd(),
	)
	return rootCmd
}

func openDB(cmd *cobra.Command, args []string) error {
	if dbPath == "" {
		return fmt.Errorf("--db is required")
	}
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var err error
	db, err = gridb.Open(dbPath, gridb.Options{
		Logger:      logger,
		Verbose:     verbose,
		JournalDir:  journalDir,
		JournalSync: syncJrnl,
	})
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", dbPath, err)
	}
	return nil
}

func closeDB() {
	if db != nil {
		db.Close()
		db = nil
	}
}

func parseTable(s string) (gridb.TableID, error) {
	return gridb.ParseTableID(s)
}

func parseIndex(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q", s)
	}
	return v, nil
}

func parseIndexes(args []string) ([]int, error) {
	result := make([]int, 0, len(args))
	for _, s := range args {
		v, err := parseIndex(s)
		if err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	return result, nil
}
