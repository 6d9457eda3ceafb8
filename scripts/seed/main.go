// Package main implements a standalone seed script that populates a
// development database with staff accounts, registration codes, and a
// verified demo student. It talks SQL directly, so the server does not need
// to be running.
package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func dsn() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "nclex"),
		getEnv("POSTGRES_PASSWORD", "nclex_secret"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "nclex_db"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn())
	if err != nil {
		log.Fatalf("connect to postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	adminID := seedUser(ctx, pool, "admin@nclexkeys.local", getEnv("SEED_ADMIN_PASSWORD", "admin-passw0rd!"), "Ngozi", "Adeyemi", "admin")
	seedUser(ctx, pool, "instructor@nclexkeys.local", getEnv("SEED_INSTRUCTOR_PASSWORD", "teach-passw0rd!"), "Chidi", "Okafor", "instructor")
	seedStudent(ctx, pool)

	perProgram := getEnvInt("SEED_CODES_PER_PROGRAM", 10)
	for program, price := range map[string]struct {
		amount   int64
		currency string
	}{
		"nigeria":    {30000, "NGN"},
		"african":    {35000, "NGN"},
		"usa-canada": {60, "USD"},
		"europe":     {35, "GBP"},
	} {
		seedCodes(ctx, pool, adminID, program, price.amount, price.currency, perProgram)
	}

	log.Println("seed complete")
}

func seedUser(ctx context.Context, pool *pgxpool.Pool, email, password, firstName, lastName, role string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password for %s: %v", email, err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	tag, err := pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			is_active, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, TRUE, $7, $7)
		ON CONFLICT (email) DO NOTHING`,
		id, email, string(hash), firstName, lastName, role, now,
	)
	if err != nil {
		log.Fatalf("insert user %s: %v", email, err)
	}
	if tag.RowsAffected() == 0 {
		// Already seeded; reuse the existing row.
		if err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id); err != nil {
			log.Fatalf("look up user %s: %v", email, err)
		}
		log.Printf("user %s already exists", email)
		return id
	}

	log.Printf("created %s %s (password %q)", role, email, password)
	return id
}

// seedStudent creates a verified student backed by a consumed payment intent,
// mirroring what a real enrollment leaves behind.
func seedStudent(ctx context.Context, pool *pgxpool.Pool) {
	email := "student@nclexkeys.local"
	password := getEnv("SEED_STUDENT_PASSWORD", "study-passw0rd!")
	reference := "nclex_seed_" + uuid.New().String()[:8]

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash student password: %v", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()
	tag, err := pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, first_name, last_name, role,
			is_active, email_verified, plan_id, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, 'Ada', 'Obi', 'student', TRUE, TRUE, 'nigeria', $4, $5, $5)
		ON CONFLICT (email) DO NOTHING`,
		id, email, string(hash), reference, now,
	)
	if err != nil {
		log.Fatalf("insert student: %v", err)
	}
	if tag.RowsAffected() == 0 {
		log.Printf("student %s already exists", email)
		return
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO payment_intents (id, reference, plan_id, amount, currency, status, gateway,
			email, full_name, consumed_by_user_id, paid_at, created_at, updated_at)
		VALUES ($1, $2, 'nigeria', 30000, 'NGN', 'completed', 'mock', $3, 'Ada Obi', $4, $5, $5, $5)`,
		uuid.New().String(), reference, email, id, now,
	)
	if err != nil {
		log.Fatalf("insert student payment intent: %v", err)
	}

	log.Printf("created student %s (password %q, reference %s)", email, password, reference)
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		log.Fatalf("read random bytes: %v", err)
	}
	out := make([]byte, 0, 15)
	out = append(out, "NCLEX-"...)
	for i, b := range buf {
		if i == 4 {
			out = append(out, '-')
		}
		out = append(out, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return string(out)
}

func seedCodes(ctx context.Context, pool *pgxpool.Pool, createdBy, program string, amount int64, currency string, count int) {
	now := time.Now().UTC()
	expires := now.Add(90 * 24 * time.Hour)

	created := 0
	for i := 0; i < count; i++ {
		tag, err := pool.Exec(ctx, `
			INSERT INTO registration_codes (id, code, program, amount, currency, created_by, expires_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (code) DO NOTHING`,
			uuid.New().String(), randomCode(), program, amount, currency, createdBy, expires, now,
		)
		if err != nil {
			log.Fatalf("insert registration code for %s: %v", program, err)
		}
		created += int(tag.RowsAffected())
	}

	log.Printf("created %d registration codes for %s", created, program)
}
