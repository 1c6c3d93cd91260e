// Worker consumes security events from Kafka, pushes them to Loki, and runs
// the periodic expiry sweeps (sessions, refresh tokens, MFA transactions,
// device trust, login contexts).
// Set KAFKA_BROKERS, SECURITY_EVENT_KAFKA_TOPIC, KAFKA_GROUP_ID, LOKI_URL,
// DATABASE_URL, and SWEEP_INTERVAL.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"ciam-core/backend/internal/config"
	"ciam-core/backend/internal/db"
	devicetrustrepo "ciam-core/backend/internal/devicetrust/repository"
	devicetrustservice "ciam-core/backend/internal/devicetrust/service"
	lcrepo "ciam-core/backend/internal/logincontext/repository"
	mfarepo "ciam-core/backend/internal/mfa/repository"
	mfaservice "ciam-core/backend/internal/mfa/service"
	sessionrepo "ciam-core/backend/internal/session/repository"
	sessionservice "ciam-core/backend/internal/session/service"
	"ciam-core/backend/internal/telemetry/loki"
	tokenrepo "ciam-core/backend/internal/token/repository"
	tokenservice "ciam-core/backend/internal/token/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("worker: shutting down...")
		cancel()
	}()

	if cfg.DatabaseURL != "" {
		conn, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("worker: db: %v", err)
		}
		defer conn.Close()
		go runSweeps(ctx, conn, cfg)
	} else {
		log.Println("worker: DATABASE_URL not set, expiry sweeps disabled")
	}

	brokers := cfg.SecurityEventKafkaBrokersList()
	if len(brokers) == 0 || cfg.LokiURL == "" {
		log.Println("worker: KAFKA_BROKERS or LOKI_URL not set, event forwarding disabled")
		<-ctx.Done()
		log.Println("worker: stopped")
		return
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.SecurityEventKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	log.Printf("worker: consuming from %s (group %s), pushing to %s", cfg.SecurityEventKafkaTopic, cfg.KafkaGroupID, cfg.LokiURL)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("worker: stopped")
				return
			}
			log.Printf("worker: kafka read error: %v", err)
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := loki.PushEventJSON(pushCtx, cfg.LokiURL, msg.Value); err != nil {
			log.Printf("worker: loki push failed: %v", err)
		}
		pushCancel()
	}
}

// runSweeps expires overdue rows on a timer: sessions, refresh tokens, MFA
// transactions, device trust records, and login contexts.
func runSweeps(ctx context.Context, conn *sql.DB, cfg *config.Config) {
	sessions := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn), cfg.SessionLifetime(), nil)
	tokens := tokenservice.NewService(tokenrepo.NewPostgresRepository(conn), nil, nil, nil, cfg.RefreshTTL(), nil)
	devices := devicetrustservice.NewService(devicetrustrepo.NewPostgresRepository(conn), cfg.DefaultTrustTTLDays, nil)
	mfaManager := mfaservice.NewManager(
		mfarepo.NewPostgresRepository(conn), nil, nil, nil,
		cfg.TransactionTTL(), cfg.MFAMaxOTPAttempts, cfg.MFAPollRetryAfter, nil,
	)
	contexts := lcrepo.NewPostgresRepository(conn)

	interval := cfg.SweepEvery()
	log.Printf("worker: sweeping every %s", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		sweepCtx, sweepCancel := context.WithTimeout(ctx, 30*time.Second)
		report := func(name string, n int64, err error) {
			if err != nil {
				log.Printf("worker: sweep %s: %v", name, err)
				return
			}
			if n > 0 {
				log.Printf("worker: sweep %s: expired %d", name, n)
			}
		}

		n, err := sessions.SweepExpired(sweepCtx)
		report("sessions", n, err)
		n, err = tokens.SweepExpired(sweepCtx)
		report("tokens", n, err)
		n, err = mfaManager.Sweep(sweepCtx)
		report("mfa", n, err)
		n, err = devices.SweepExpired(sweepCtx)
		report("devices", n, err)
		n, err = contexts.DeleteExpired(sweepCtx, time.Now().UTC())
		report("contexts", n, err)

		sweepCancel()
	}
}
