package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"nia/internal/config"
	"nia/internal/repository"
	"nia/internal/service"
)

func main() {
	// Define subcommands
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	importCmd := flag.NewFlagSet("import", flag.ExitOnError)
	pruneCmd := flag.NewFlagSet("prune", flag.ExitOnError)
	countCmd := flag.NewFlagSet("count", flag.ExitOnError)

	// Export flags
	exportOutput := exportCmd.String("output", "", "Output file path (default: sessions_YYYYMMDD_HHMMSS.json)")

	// Import flags
	importInput := importCmd.String("input", "", "Input file path (required)")
	importClear := importCmd.Bool("clear", false, "Delete existing sessions before import (WARNING: destructive)")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Load configuration
	cfg := config.Load()
	if cfg.SessionStore == repository.StoreMemory {
		log.Fatal("SESSION_STORE is memory; set it to sqlite, postgres, mysql or redis to manage stored sessions")
	}

	repo, closer, err := repository.OpenSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer closer.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		err = handleExport(ctx, service.NewBackupService(repo, cfg.SessionStore), *exportOutput)

	case "import":
		importCmd.Parse(os.Args[2:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		err = handleImport(ctx, repo, service.NewBackupService(repo, cfg.SessionStore), *importInput, *importClear)

	case "prune":
		pruneCmd.Parse(os.Args[2:])
		var n int64
		if n, err = repo.DeleteExpired(ctx); err == nil {
			log.Printf("Removed %d expired sessions", n)
		}

	case "count":
		countCmd.Parse(os.Args[2:])
		var n int64
		if n, err = repo.Count(ctx); err == nil {
			fmt.Println(n)
		}

	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		closer.Close()
		log.Fatalf("%s failed: %v", os.Args[1], err)
	}
}

func handleExport(ctx context.Context, backupService *service.BackupService, outputPath string) error {
	// Generate default filename if not provided
	if outputPath == "" {
		outputPath = fmt.Sprintf("sessions_%s.json", time.Now().Format("20060102_150405"))
	}

	// Ensure directory exists
	if dir := filepath.Dir(outputPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	log.Printf("Exporting sessions to: %s", outputPath)
	if err := backupService.Export(ctx, outputPath); err != nil {
		return err
	}

	if fileInfo, err := os.Stat(outputPath); err == nil {
		log.Printf("Export complete! File size: %.2f KB", float64(fileInfo.Size())/1024)
	}
	return nil
}

func handleImport(ctx context.Context, repo repository.SessionRepository, backupService *service.BackupService, inputPath string, clearData bool) error {
	if _, err := os.Stat(inputPath); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", inputPath)
	}

	if clearData {
		fmt.Print("WARNING: This will delete all stored sessions. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			log.Println("Import cancelled")
			return nil
		}

		if err := clearSessions(ctx, repo); err != nil {
			return fmt.Errorf("failed to clear sessions: %w", err)
		}
	}

	log.Printf("Importing sessions from: %s", inputPath)
	if err := backupService.Import(ctx, inputPath); err != nil {
		return err
	}

	log.Println("Import complete!")
	return nil
}

func clearSessions(ctx context.Context, repo repository.SessionRepository) error {
	sessions, err := repo.List(ctx)
	if err != nil {
		return err
	}
	for _, s := range sessions {
		if err := repo.Delete(ctx, s.ID); err != nil {
			return err
		}
	}
	log.Printf("Deleted %d sessions", len(sessions))
	return nil
}

func printUsage() {
	fmt.Println("Nia Session Store Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  sessions export [options]    Export stored sessions to a JSON file")
	fmt.Println("  sessions import [options]    Import sessions from a JSON file")
	fmt.Println("  sessions prune               Delete expired sessions")
	fmt.Println("  sessions count               Print the number of stored sessions")
	fmt.Println()
	fmt.Println("Export Options:")
	fmt.Println("  -output <file>    Output file path (default: sessions_YYYYMMDD_HHMMSS.json)")
	fmt.Println()
	fmt.Println("Import Options:")
	fmt.Println("  -input <file>     Input file path (required)")
	fmt.Println("  -clear            Delete existing sessions before import (WARNING: destructive)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  SESSION_STORE    sqlite, postgres, mysql or redis")
	fmt.Println("  DB_PATH          SQLite database path (default: ./nia.db)")
	fmt.Println("  DATABASE_URL     PostgreSQL or MySQL connection URL")
	fmt.Println("  REDIS_ADDR       Redis address (default: localhost:6379)")
}
