package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"firewatch/internal/audit"
	"firewatch/internal/config"
	"firewatch/internal/imagestore"
	"firewatch/internal/queue"
	"firewatch/internal/retention"
	"firewatch/internal/store"
)

// Worker runs the background side of the system: it sweeps expired capture
// images on a schedule and drains admission events from the queue into the
// activity log.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "firewatch:admissions")
	}

	images, err := imagestore.New(cfg.TempImageDir, cfg.EnrollImageDir)
	if err != nil {
		log.Fatalf("image store init failed: %v", err)
	}

	janitor := retention.New(images, cfg.ImageRetention, cfg.SweepInterval)
	go janitor.Run(ctx)
	log.Printf("retention janitor started: dir=%s max_age=%s interval=%s",
		cfg.TempImageDir, cfg.ImageRetention, cfg.SweepInterval)

	auditLog := audit.NewLog(db.Client)

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for admission events...")
	for msg := range messages {
		if msg.Type != "admission" {
			continue
		}

		parts := strings.Split(string(msg.Body), "|")
		if len(parts) != 3 {
			log.Printf("malformed admission event %q", msg.Body)
			continue
		}
		personID, err := strconv.ParseInt(parts[0], 10, 64)
		if err != nil {
			log.Printf("malformed admission event %q: %v", msg.Body, err)
			continue
		}
		event := parts[1]
		confidence, _ := strconv.ParseFloat(parts[2], 64)

		entry := audit.Entry{
			ActorID:     personID,
			Action:      "Auto Attendance",
			Description: fmt.Sprintf("Recorded %s for personnel %d (confidence %.2f)", event, personID, confidence),
		}
		if err := auditLog.Record(ctx, entry); err != nil {
			log.Printf("activity log write failed: %v", err)
		}
	}

	log.Println("worker stopped")
}
