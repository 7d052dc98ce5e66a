package guardians

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"testing"
)

func TestMigrationFilesWellFormed(t *testing.T) {
	migrationsDir := filepath.Join("..", "..", "db", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}

	pattern := regexp.MustCompile(`^(\d{4})_[a-z0-9_]+\.up\.sql$`)
	seen := map[string]string{}
	var names []string

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		match := pattern.FindStringSubmatch(name)
		if match == nil {
			t.Errorf("migration %q does not follow NNNN_name.up.sql", name)
			continue
		}
		version := match[1]
		if prev, dup := seen[version]; dup {
			t.Errorf("version %s used by both %q and %q", version, prev, name)
		}
		seen[version] = name
		names = append(names, name)
	}

	if len(names) == 0 {
		t.Fatal("no migrations discovered")
	}

	// ApplyMigrations runs files in lexical order, which must match the
	// version order for the schema to build up correctly.
	if !sort.StringsAreSorted(names) {
		t.Errorf("migration files not in version order: %v", names)
	}
}
