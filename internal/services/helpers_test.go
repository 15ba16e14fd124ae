package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/skillswap-connections/internal/repo"
)

// Users and posts shared by the lifecycle tests. Alice requests, Bob owns.
const (
	alice = "1"
	bob   = "2"
	carol = "3"

	postP        = "10" // bob
	postQ        = "11" // bob
	postR        = "12" // bob
	postAlice    = "20" // alice
	postInactive = "30" // bob, inactive
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:connsvc_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// seedDirectory creates the users and posts above.
func seedDirectory(t *testing.T, db *gorm.DB) {
	t.Helper()
	ctx := context.Background()
	for id, name := range map[string]string{alice: "Alice", bob: "Bob", carol: "Carol"} {
		if _, err := repo.UpsertUser(ctx, db, id, name); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
	posts := []struct {
		id, owner string
		active    bool
	}{
		{postP, bob, true},
		{postQ, bob, true},
		{postR, bob, true},
		{postAlice, alice, true},
		{postInactive, bob, false},
	}
	for _, p := range posts {
		if _, err := repo.UpsertPost(ctx, db, p.id, p.owner, "post "+p.id, p.active); err != nil {
			t.Fatalf("seed post %s: %v", p.id, err)
		}
	}
}

// testClock is a settable clock.
type testClock struct{ t time.Time }

func newClock() *testClock {
	return &testClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func strPtr(s string) *string { return &s }

// newConnSvc builds a ConnectionService over db driven by clk.
func newConnSvc(db *gorm.DB, clk *testClock) *ConnectionService {
	s := NewConnectionService(db, repo.Store{}, repo.NewDirectory(db), DefaultCooldown)
	s.Now = clk.Now
	s.Cooldowns.Now = clk.Now
	return s
}
