package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ciam-core/backend/internal/audit"
	auditrepo "ciam-core/backend/internal/audit/repository"
	compliancerepo "ciam-core/backend/internal/compliance/repository"
	complianceservice "ciam-core/backend/internal/compliance/service"
	"ciam-core/backend/internal/config"
	"ciam-core/backend/internal/db"
	devicetrustrepo "ciam-core/backend/internal/devicetrust/repository"
	devicetrustservice "ciam-core/backend/internal/devicetrust/service"
	"ciam-core/backend/internal/devotp"
	healthhandler "ciam-core/backend/internal/health/handler"
	identityservice "ciam-core/backend/internal/identity/service"
	lcrepo "ciam-core/backend/internal/logincontext/repository"
	"ciam-core/backend/internal/mfa/push"
	mfarepo "ciam-core/backend/internal/mfa/repository"
	mfaservice "ciam-core/backend/internal/mfa/service"
	"ciam-core/backend/internal/mfa/sms"
	"ciam-core/backend/internal/policy/engine"
	policyrepo "ciam-core/backend/internal/policy/repository"
	"ciam-core/backend/internal/security"
	"ciam-core/backend/internal/server"
	"ciam-core/backend/internal/server/middleware"
	sessionrepo "ciam-core/backend/internal/session/repository"
	sessionservice "ciam-core/backend/internal/session/service"
	subjectrepo "ciam-core/backend/internal/subject/repository"
	"ciam-core/backend/internal/telemetry"
	telemetryotel "ciam-core/backend/internal/telemetry/otel"
	"ciam-core/backend/internal/telemetry/producer"
	tokenrepo "ciam-core/backend/internal/token/repository"
	tokenservice "ciam-core/backend/internal/token/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, "ciam-core", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privateKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v", err)
	}
	publicKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	provider := security.NewTokenProvider(privateKey, publicKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL())

	subjects := subjectrepo.NewPostgresRepository(conn)
	auditLogger := audit.NewLogger(auditrepo.NewPostgresRepository(conn), middleware.IPFromContext)

	sessions := sessionservice.NewRegistry(sessionrepo.NewPostgresRepository(conn), cfg.SessionLifetime(), auditLogger)
	tokens := tokenservice.NewService(tokenrepo.NewPostgresRepository(conn), sessions, subjects, provider, cfg.RefreshTTL(), auditLogger)
	devices := devicetrustservice.NewService(devicetrustrepo.NewPostgresRepository(conn), cfg.DefaultTrustTTLDays, auditLogger)

	var devStore devotp.Store
	if cfg.OTPReturnToClient {
		log.Println("dev OTP mode enabled: codes are NOT delivered, read them via GET /dev/mfa/otp")
		devStore = devotp.NewMemoryStore()
	}
	sender := sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender)
	pusher := push.NewWebhookClient(cfg.PushGatewayURL)
	mfaManager := mfaservice.NewManager(
		mfarepo.NewPostgresRepository(conn), sender, pusher, devStore,
		cfg.TransactionTTL(), cfg.MFAMaxOTPAttempts, cfg.MFAPollRetryAfter, auditLogger,
	)

	compliance := complianceservice.NewTracker(compliancerepo.NewPostgresRepository(conn), auditLogger)
	evaluator := engine.NewOPAEvaluator(policyrepo.NewPostgresRepository(conn))

	// Security events go to Kafka when brokers are configured, else to the
	// OTel log pipeline.
	var emitter telemetry.EventEmitter
	kafkaProducer, err := producer.NewKafkaProducer(cfg.SecurityEventKafkaBrokersList(), cfg.SecurityEventKafkaTopic)
	if err != nil {
		log.Fatalf("kafka: %v", err)
	}
	if kafkaProducer != nil {
		defer kafkaProducer.Close()
		emitter = kafkaProducer
	} else {
		emitter = telemetryotel.NewEventEmitter(providers.LoggerProvider)
	}

	orchestrator := identityservice.NewOrchestrator(
		subjects,
		lcrepo.NewPostgresRepository(conn),
		sessions,
		mfaManager,
		devices,
		compliance,
		tokens,
		evaluator,
		security.NewHasher(cfg.BcryptCost),
		auditLogger,
		emitter,
		cfg.ContextTTL(),
		cfg.MFARequiredAlways,
		cfg.DefaultTrustTTLDays,
	)

	handler := server.NewHandler(orchestrator, mfaManager, tokens, cfg.RefreshTTL(), cfg.Env == "production")
	router := server.NewRouter(server.Deps{
		Handler:  handler,
		Provider: provider,
		Audit:    auditLogger,
		Health:   healthhandler.NewServer(conn, evaluator),
		DevOTP:   devStore,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	// Give in-flight async security events a chance to flush.
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}
