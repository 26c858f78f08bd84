package store

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"
)

func TestMigrationsHaveMatchingUpAndDownFiles(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d+)_.*\.(up|down)\.sql$`)
	byVersion := map[string]map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		version := match[1]
		direction := match[2]
		if byVersion[version] == nil {
			byVersion[version] = map[string]bool{}
		}
		if byVersion[version][direction] {
			t.Fatalf("duplicate %s migration file for version %s", direction, version)
		}
		byVersion[version][direction] = true
	}

	if len(byVersion) == 0 {
		t.Fatal("no migrations discovered")
	}

	for version, dirs := range byVersion {
		if !dirs["up"] || !dirs["down"] {
			t.Fatalf("version %s must include both up and down files", version)
		}
	}
}

func TestUpMigrationsAreSortedAndFiltered(t *testing.T) {
	migrations := fstest.MapFS{
		"0002_members.up.sql":     {Data: []byte("SELECT 2")},
		"0001_init.up.sql":        {Data: []byte("SELECT 1")},
		"0001_init.down.sql":      {Data: []byte("SELECT 0")},
		"README.md":               {Data: []byte("notes")},
		"archive/0000_old.up.sql": {Data: []byte("SELECT -1")},
	}

	files, err := upMigrations(migrations)
	if err != nil {
		t.Fatalf("up migrations: %v", err)
	}
	want := []string{"0001_init.up.sql", "0002_members.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("expected %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, files)
		}
	}
}

func TestNotesMigrationKeepsResolutionColumns(t *testing.T) {
	sqlBytes, err := os.ReadFile(filepath.Join("..", "..", "db", "migrations", "0001_discussions.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	for _, snippet := range []string{
		"resolved_at TIMESTAMPTZ",
		"resolved_by_id BIGINT REFERENCES users(id)",
		"position JSONB",
		"UNIQUE (project_id, iid)",
	} {
		if !regexp.MustCompile(regexp.QuoteMeta(snippet)).Match(sqlBytes) {
			t.Fatalf("expected migration to contain %q", snippet)
		}
	}
}
