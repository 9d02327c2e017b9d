package migrations

import (
	"strings"
	"testing"
)

func TestMigrationsDiscovered(t *testing.T) {
	sorted := Migrations.Sorted()
	if len(sorted) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(sorted))
	}
	if !strings.HasPrefix(sorted[0].Name, "0001") || !strings.HasPrefix(sorted[1].Name, "0002") {
		t.Fatalf("unexpected migration order %q, %q", sorted[0].Name, sorted[1].Name)
	}
	for _, m := range sorted {
		if m.Up == nil || m.Down == nil {
			t.Fatalf("migration %s lacks up or down", m.Name)
		}
	}
}
