package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/lotwise/backend-lotwise/internal/db"
	"github.com/lotwise/backend-lotwise/internal/parker"
)

const defaultTenant = "demo"

// Seeds a demo tenant: an operator login, a rate schedule, business settings,
// and a few frequent parkers. Safe to run repeatedly.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	if err := db.Migrate(dbURL); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("Failed to open DB: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping DB: %v", err)
	}

	tenantID := os.Getenv("SEED_TENANT")
	if tenantID == "" {
		tenantID = defaultTenant
	}
	log.Printf("Seeding tenant %q", tenantID)

	seedOperator(ctx, pool, tenantID)
	seedSettings(ctx, pool, tenantID)
	seedParkers(ctx, pool, tenantID)

	log.Println("Seeding completed successfully!")
}

func seedOperator(ctx context.Context, pool *pgxpool.Pool, tenantID string) {
	password := os.Getenv("SEED_OPERATOR_PASSWORD")
	if password == "" {
		password = "lotwise-demo"
	}
	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		log.Fatalf("Failed to hash operator password: %v", err)
	}

	accounts := []struct {
		Username string
		Display  string
		Role     string
	}{
		{"booth-1", "Booth Operator", "operator"},
		{"admin", "Lot Admin", "admin"},
	}

	log.Println("Seeding operators...")
	for _, a := range accounts {
		_, err = pool.Exec(ctx, `
			INSERT INTO operators (id, tenant_id, username, password_hash, display_name, role, active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (tenant_id, lower(username)) DO UPDATE SET password_hash = EXCLUDED.password_hash
		`, uuid.New(), tenantID, a.Username, hash, a.Display, a.Role)
		if err != nil {
			log.Printf("Failed to seed operator %s: %v", a.Username, err)
		}
	}
}

func seedSettings(ctx context.Context, pool *pgxpool.Pool, tenantID string) {
	log.Println("Seeding rate schedule...")
	_, err := pool.Exec(ctx, `
		INSERT INTO parking_settings
		  (tenant_id, hourly_rate, first_hour_rate, daily_max_rate, grace_period_minutes,
		   night_rate, night_start_hour, night_end_hour, weekend_rate)
		VALUES ($1, 500, 800, 5000, 15, 300, 22, 6, 600)
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	if err != nil {
		log.Printf("Failed to seed rate schedule: %v", err)
	}

	log.Println("Seeding business settings...")
	_, err = pool.Exec(ctx, `
		INSERT INTO business_settings (tenant_id, tax_rate_bps, tax_label, currency, locale)
		VALUES ($1, 1100, 'VAT', 'USD', 'en-US')
		ON CONFLICT (tenant_id) DO NOTHING
	`, tenantID)
	if err != nil {
		log.Printf("Failed to seed business settings: %v", err)
	}
}

func seedParkers(ctx context.Context, pool *pgxpool.Pool, tenantID string) {
	passExpiry := time.Now().AddDate(0, 1, 0)
	parkers := []struct {
		Plate string
		Name  string
		VIP   bool
		Pass  *time.Time
	}{
		{"AB 12 CD", "Dana Reyes", true, nil},
		{"EF-34-GH", "Sam Okafor", false, &passExpiry},
		{"IJ 56 KL", "Lee Tanaka", false, nil},
	}

	log.Println("Seeding frequent parkers...")
	for _, p := range parkers {
		_, err := pool.Exec(ctx, `
			INSERT INTO frequent_parkers (id, tenant_id, plate, name, is_vip, monthly_pass_expiry)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (tenant_id, plate) DO NOTHING
		`, uuid.New(), tenantID, parker.NormalizePlate(p.Plate), p.Name, p.VIP, p.Pass)
		if err != nil {
			log.Printf("Failed to seed parker %s: %v", p.Plate, err)
		}
	}
}
