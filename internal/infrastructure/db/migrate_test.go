package db

import "testing"

func TestMigrateURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{in: "postgres://u:p@localhost:5432/app?sslmode=disable", want: "pgx5://u:p@localhost:5432/app?sslmode=disable"},
		{in: "postgresql://u:p@localhost:5432/app", want: "pgx5://u:p@localhost:5432/app"},
		{in: "pgx5://u:p@localhost:5432/app", want: "pgx5://u:p@localhost:5432/app"},
	}
	for _, tc := range cases {
		if got := migrateURL(tc.in); got != tc.want {
			t.Fatalf("migrateURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	t.Parallel()

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected up and down migrations, got %d files", len(entries))
	}
}
