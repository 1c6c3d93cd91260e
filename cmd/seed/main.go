// seed inserts development sample data for local testing. Run via ./scripts/seed.sh.
// Idempotent: skips inserts if the dev subject (alice) already exists.
package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	"ciam-core/backend/internal/config"
	"ciam-core/backend/internal/db"
	"ciam-core/backend/internal/security"
)

// defaultStepUpPolicy matches the built-in step-up policy in
// internal/policy/engine/opa_evaluator.go. Seeded disabled so the built-in
// stays authoritative until an operator flips it on and edits it.
const defaultStepUpPolicy = `package ciam.step_up

default mfa_required = false
default register_trust_after_mfa = true
default trust_ttl_days = 30

mfa_required if {
	input.platform.mfa_required_always
}

mfa_required if {
	not input.device.trusted
}

trust_ttl_days = input.platform.default_trust_ttl_days if {
	input.platform.default_trust_ttl_days > 0
}
`

const (
	devUsername       = "alice"
	devPassword       = "password123"
	devSubjectID      = "dev-subject-001"
	lockedUsername    = "bob"
	lockedSubjectID   = "dev-subject-002"
	devFingerprint    = "dev-device-fp-001"
	devPolicyID       = "dev-policy-001"
	termsDocumentID   = "terms-of-service"
	privacyDocumentID = "privacy-policy"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	ctx := context.Background()

	var existing string
	err = conn.QueryRowContext(ctx, `SELECT id FROM subjects WHERE username = $1`, devUsername).Scan(&existing)
	if err == nil {
		log.Println("Seed already applied (alice exists). Skipping.")
		os.Exit(0)
	}
	if err != sql.ErrNoRows {
		log.Fatalf("seed check: %v", err)
	}

	hasher := security.NewHasher(cfg.BcryptCost)
	passwordHash, err := hasher.Hash([]byte(devPassword))
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	now := time.Now().UTC()

	// alice: active, enrolled for sms/voice and push.
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO subjects (id, username, password_hash, phone, push_device_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'active', $6, $6)`,
		devSubjectID, devUsername, passwordHash, "+15550100", "push-device-001", now,
	); err != nil {
		log.Fatalf("create subject %s: %v", devUsername, err)
	}

	// bob: locked, for exercising the locked-account path.
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO subjects (id, username, password_hash, phone, push_device_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, NULL, 'locked', $4, $4)`,
		lockedSubjectID, lockedUsername, passwordHash, now,
	); err != nil {
		log.Fatalf("create subject %s: %v", lockedUsername, err)
	}

	// A device alice already trusts, so a login with this fingerprint skips MFA.
	if _, err := conn.ExecContext(ctx, `
		INSERT INTO device_trust (subject_id, fingerprint, trusted_at, expires_at)
		VALUES ($1, $2, $3, $4)`,
		devSubjectID, devFingerprint, now, now.AddDate(0, 0, cfg.DefaultTrustTTLDays),
	); err != nil {
		log.Fatalf("create device trust: %v", err)
	}

	// Mandatory e-sign documents. Terms is at version 2 so re-acceptance
	// behavior can be exercised by bumping it further.
	for _, doc := range []struct {
		id      string
		version int
	}{
		{termsDocumentID, 2},
		{privacyDocumentID, 1},
	} {
		if _, err := conn.ExecContext(ctx, `
			INSERT INTO compliance_documents (id, version, mandatory, active, created_at)
			VALUES ($1, $2, TRUE, TRUE, $3)`,
			doc.id, doc.version, now,
		); err != nil {
			log.Fatalf("create document %s: %v", doc.id, err)
		}
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO policies (id, rules, enabled, created_at)
		VALUES ($1, $2, FALSE, $3)`,
		devPolicyID, defaultStepUpPolicy, now,
	); err != nil {
		log.Fatalf("create policy: %v", err)
	}

	log.Println("Seed applied:")
	log.Printf("  subject %s / %s (active, phone + push enrolled)", devUsername, devPassword)
	log.Printf("  subject %s / %s (locked)", lockedUsername, devPassword)
	log.Printf("  trusted fingerprint %s for %s", devFingerprint, devUsername)
	log.Printf("  mandatory documents: %s v2, %s v1", termsDocumentID, privacyDocumentID)
	log.Printf("  policy %s (disabled copy of the built-in step-up policy)", devPolicyID)
}
