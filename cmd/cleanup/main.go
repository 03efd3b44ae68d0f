package main

import (
	"context"
	"flag"
	"log"
	"os"
	"strings"
	"time"

	"github.com/qs3c/vidchat_go_server/config"
	"github.com/qs3c/vidchat_go_server/internal/database"
	"github.com/qs3c/vidchat_go_server/internal/pkg/history"
	"github.com/qs3c/vidchat_go_server/internal/repository"
)

var (
	dryRun       = flag.Bool("dry-run", true, "Dry run mode, don't actually delete buffers")
	errorRetain  = flag.Int("error-retain", 7, "Days to keep history buffers of ERROR jobs")
	cleanOrphans = flag.Bool("clean-orphans", true, "Clean buffers whose job no longer exists")
	cleanErrBufs = flag.Bool("clean-error-buffers", true, "Clean buffers of stale ERROR jobs")
)

func main() {
	flag.Parse()

	log.Println("Starting history buffer cleanup...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect redis: %v", err)
	}

	ctx := context.Background()
	buffer := history.NewStore(rdb)
	jobRepo := repository.NewJobRepository(db)

	scanned := 0
	deleted := 0

	// 1. 清理孤儿缓冲:任务记录已不存在的会话缓冲
	if *cleanOrphans {
		ids, err := buffer.Keys(ctx)
		if err != nil {
			log.Fatalf("Failed to list history buffers: %v", err)
		}
		scanned = len(ids)
		log.Printf("Scanning %d history buffers for orphans...", len(ids))

		for _, id := range ids {
			exists, err := jobRepo.Exists(id)
			if err != nil {
				log.Printf("  failed to check job %s: %v", id, err)
				continue
			}
			if exists {
				continue
			}

			log.Printf("  - orphan buffer %s", id)
			if !*dryRun {
				if err := buffer.Clear(ctx, id); err != nil {
					log.Printf("    failed to delete: %v", err)
					continue
				}
			}
			deleted++
		}
	}

	// 2. 清理长期停留在 ERROR 态的任务缓冲
	if *cleanErrBufs {
		cutoff := time.Now().Add(-time.Duration(*errorRetain) * 24 * time.Hour)
		ids, err := jobRepo.ListErrorJobIDsBefore(cutoff)
		if err != nil {
			log.Fatalf("Failed to list stale ERROR jobs: %v", err)
		}
		log.Printf("Found %d ERROR jobs older than %d days", len(ids), *errorRetain)

		for _, id := range ids {
			n, err := buffer.Len(ctx, id)
			if err != nil || n == 0 {
				continue
			}

			log.Printf("  - stale ERROR buffer %s (%d entries)", id, n)
			if !*dryRun {
				if err := buffer.Clear(ctx, id); err != nil {
					log.Printf("    failed to delete: %v", err)
					continue
				}
			}
			deleted++
		}
	}

	log.Println(strings.Repeat("=", 50))
	log.Printf("Buffers scanned: %d", scanned)
	log.Printf("Buffers deleted: %d", deleted)
	if *dryRun {
		log.Println("DRY RUN MODE - no buffers were actually deleted")
		log.Println("Run with -dry-run=false to apply")
	} else {
		log.Println("Cleanup completed")
	}
	log.Println(strings.Repeat("=", 50))
}
