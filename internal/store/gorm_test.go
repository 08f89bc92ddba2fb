package store

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"chatroom/backend/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestGormStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) MessageStore {
		return NewGormStore(openTestDB(t))
	})
}

func TestGormStoreFailure(t *testing.T) {
	db := openTestDB(t)
	s := NewGormStore(db)
	if err := database.Close(db); err != nil {
		t.Fatalf("close: %v", err)
	}

	ctx := context.Background()
	if _, err := s.Append(ctx, "general", "alice", "hi"); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Append() error = %v, want ErrStoreFailure", err)
	}
	if _, err := s.Recent(ctx, "general", 10); !errors.Is(err, ErrStoreFailure) {
		t.Errorf("Recent() error = %v, want ErrStoreFailure", err)
	}
}
