package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matching %q", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestBooksMigrationEnforcesCopyBounds(t *testing.T) {
	content := readMigration(t, "*_create_books.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS books",
		"CHECK (total_copies >= 1)",
		"CHECK (available_copies >= 0 AND available_copies <= total_copies)",
		"DROP TABLE IF EXISTS books",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestRentalsMigrationEnforcesSingleOpenLoan(t *testing.T) {
	content := readMigration(t, "*_create_rentals.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS rentals",
		"FOREIGN KEY (book_id) REFERENCES books(id)",
		"FOREIGN KEY (user_id) REFERENCES users(id)",
		"CHECK (due_date > rental_date)",
		"uq_rentals_open_book_user",
		"WHERE status IN ('active', 'overdue')",
		"DROP TABLE IF EXISTS rentals",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReservationsMigrationEnforcesSingleOpenReservation(t *testing.T) {
	content := readMigration(t, "*_create_reservations.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS reservations",
		"uq_reservations_open_book_user",
		"WHERE status IN ('pending', 'approved')",
		"DROP TABLE IF EXISTS reservations",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
