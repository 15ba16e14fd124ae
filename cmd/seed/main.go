// Command seed fills the directory tables (users and posts) with demo data
// and, when AUTH_JWT_SECRET is set, prints a bearer token per demo user.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/skillswap-connections/internal/auth"
	"github.com/tbourn/skillswap-connections/internal/cache"
	"github.com/tbourn/skillswap-connections/internal/config"
	"github.com/tbourn/skillswap-connections/internal/repo"
	"github.com/tbourn/skillswap-connections/internal/sysutil"
)

type demoUser struct{ id, name string }

type demoPost struct {
	id, owner, title string
	active           bool
}

var (
	users = []demoUser{
		{"u-alice", "Alice"},
		{"u-bob", "Bob"},
		{"u-carol", "Carol"},
	}
	posts = []demoPost{
		{"p-guitar", "u-bob", "Guitar lessons for Spanish practice", true},
		{"p-baking", "u-bob", "Sourdough basics", true},
		{"p-python", "u-alice", "Intro to Python", true},
		{"p-chess", "u-carol", "Chess openings (closed)", false},
	}
)

func main() {
	_ = godotenv.Load()

	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of printed tokens")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, true)

	if err := run(context.Background(), cfg, *tokenTTL); err != nil {
		log.Fatal().Err(err).Msg("seed failed")
	}
}

func run(ctx context.Context, cfg config.Config, tokenTTL time.Duration) error {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	for _, u := range users {
		if _, err := repo.UpsertUser(ctx, db, u.id, u.name); err != nil {
			return fmt.Errorf("seed user %s: %w", u.id, err)
		}
	}
	for _, p := range posts {
		if _, err := repo.UpsertPost(ctx, db, p.id, p.owner, p.title, p.active); err != nil {
			return fmt.Errorf("seed post %s: %w", p.id, err)
		}
	}
	log.Info().Int("users", len(users)).Int("posts", len(posts)).Str("db", cfg.DBPath).Msg("directory seeded")

	if cfg.Redis.Addr != "" {
		invalidateCache(ctx, cfg, db)
	}

	if cfg.Auth.JWTSecret == "" {
		fmt.Println("AUTH_JWT_SECRET not set; use the X-User-ID header with AUTH_ALLOW_HEADER_IDENTITY=true")
		return nil
	}
	now := time.Now()
	for _, u := range users {
		tok, err := auth.IssueToken(u.id, u.name, cfg.Auth.JWTSecret, tokenTTL, now)
		if err != nil {
			return fmt.Errorf("token for %s: %w", u.id, err)
		}
		fmt.Printf("%s\t%s\n", u.id, tok)
	}
	return nil
}

// invalidateCache drops cached lookups for the seeded rows so a running
// server sees the new owners right away.
func invalidateCache(ctx context.Context, cfg config.Config, db *gorm.DB) {
	rdb, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Warn().Err(err).Msg("directory cache unavailable; cached entries expire on their own")
		return
	}
	defer rdb.Close()

	dir := cache.NewDirectory(repo.NewDirectory(db), rdb, cfg.Redis.TTL)
	for _, u := range users {
		dir.InvalidateUser(ctx, u.id)
	}
	for _, p := range posts {
		dir.InvalidatePost(ctx, p.id)
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("directory cache invalidated")
}
