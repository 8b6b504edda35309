package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mathdrill/internal/config"
	"mathdrill/internal/database"
	"mathdrill/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "backup",
	Short: "MathDrill database backup tool",
	Long: `Export and import the MathDrill database as JSON.

The database is selected with the same settings as the server:
  DATABASE_TYPE    sqlite, postgres, or mysql (default: sqlite)
  DB_PATH          SQLite database path (default: ./mathdrill.db)
  DATABASE_URL     PostgreSQL or MySQL connection URL
  CONFIG_FILE      optional YAML config file`,
	SilenceUsage: true,
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export database to a JSON file",
	Example: `  backup export
  backup export --output backups/mathdrill.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
		}

		if dir := filepath.Dir(output); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		log.Printf("Exporting database to: %s", output)
		backup, err := service.NewBackupService(db).Export(output)
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if info, err := os.Stat(output); err == nil {
			log.Printf("Export complete! %d users, file size: %.2f MB", len(backup.Users), float64(info.Size())/1024/1024)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import database from a JSON file",
	Example: `  backup import --input backup.json
  backup import --input backup.json --clear`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		clearFirst, _ := cmd.Flags().GetBool("clear")
		yes, _ := cmd.Flags().GetBool("yes")

		if _, err := os.Stat(input); os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", input)
		}

		if clearFirst && !yes {
			fmt.Fprint(cmd.OutOrStdout(), "WARNING: This will delete all existing accounts and practice data. Type 'yes' to confirm: ")
			answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				log.Println("Import cancelled")
				return nil
			}
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		log.Printf("Importing database from: %s", input)
		if err := service.NewBackupService(db).Import(context.Background(), input, clearFirst); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		log.Println("Import complete!")
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file path (default: backup_YYYYMMDD_HHMMSS.json)")

	importCmd.Flags().StringP("input", "i", "", "input file path")
	importCmd.Flags().Bool("clear", false, "clear existing data before import (destructive)")
	importCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt for --clear")
	_ = importCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(exportCmd, importCmd)
}

// openDatabase connects with the server configuration and brings the schema
// up to date
func openDatabase() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
