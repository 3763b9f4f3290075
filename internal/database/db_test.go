package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/charlesng35/jobboard/internal/models"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "oracle"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestAutoMigrateAndSeedData(t *testing.T) {
	db := openTestDB(t)

	seed := SeedOptions{AdminEmail: "Root@Example.com", AdminPassword: "s3cret-pass"}
	if err := AutoMigrateAndSeed(db, seed); err != nil {
		t.Fatalf("auto migrate and seed failed: %v", err)
	}

	var admin models.Admin
	if err := db.Where("email = ?", "root@example.com").First(&admin).Error; err != nil {
		t.Fatalf("load seeded admin: %v", err)
	}
	if !admin.IsSuper || !admin.Verified() {
		t.Fatalf("expected verified super admin, got %+v", admin)
	}

	// Seeding twice must not duplicate the admin.
	if err := SeedData(db, seed); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	var count int64
	if err := db.Model(&models.Admin{}).Count(&count).Error; err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 admin, got %d", count)
	}
}

func TestSeedDataSkipsWithoutEmail(t *testing.T) {
	db := openTestDB(t)
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	if err := SeedData(db, SeedOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := SeedData(db, SeedOptions{AdminEmail: "a@example.com"}); err == nil {
		t.Fatal("expected missing password error")
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func TestSQLiteDSN(t *testing.T) {
	dsn, memory, err := sqliteDSN(Config{})
	if err != nil || !memory || !strings.HasPrefix(dsn, "file::memory:") {
		t.Fatalf("expected shared memory dsn, got %q memory=%v err=%v", dsn, memory, err)
	}

	path := filepath.Join(t.TempDir(), "nested", "jobboard.db")
	dsn, memory, err = sqliteDSN(Config{Path: path})
	if err != nil || memory {
		t.Fatalf("file dsn: %q memory=%v err=%v", dsn, memory, err)
	}
	for _, pragma := range []string{"_foreign_keys=1", "_journal_mode=WAL", "_busy_timeout=5000"} {
		if !strings.Contains(dsn, pragma) {
			t.Fatalf("dsn %q missing %s", dsn, pragma)
		}
	}
	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Fatalf("expected parent directory to be created: %v", err)
	}

	dsn, _, _ = sqliteDSN(Config{DSN: "file:custom.db", Path: path})
	if dsn != "file:custom.db" {
		t.Fatalf("explicit dsn should win, got %q", dsn)
	}
}
