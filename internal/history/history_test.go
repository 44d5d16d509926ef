package history

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestRecordAndRecent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{ButtonID: "a", ActionType: "open_url", ActionParam: "https://a", OK: true, At: base},
		{ButtonID: "ghost", Error: "unknown button", At: base.Add(time.Second)},
		{ButtonID: "b", ActionType: "hotkey", ActionParam: "CTRL+B", OK: true, At: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(got))
	}
	if got[0].ButtonID != "b" || got[1].ButtonID != "ghost" {
		t.Errorf("order = %s, %s; want b, ghost", got[0].ButtonID, got[1].ButtonID)
	}
	if got[1].OK || got[1].Error != "unknown button" {
		t.Errorf("failed entry = %+v", got[1])
	}
	if !got[0].At.Equal(base.Add(2 * time.Second)) {
		t.Errorf("At = %v", got[0].At)
	}
}

func TestOpenTwiceKeepsData(t *testing.T) {
	s, path := openTestStore(t)
	if err := s.Record(context.Background(), Entry{ButtonID: "a", OK: true}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer again.Close()
	got, err := again.Recent(context.Background(), 0)
	if err != nil || len(got) != 1 {
		t.Errorf("Recent() after reopen = %v, %v", got, err)
	}
}

func TestRunMigrationsClosesDB(t *testing.T) {
	tests := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr bool
	}{
		{name: "embedded", wantErr: false},
		{name: "no migrations directory", fsys: fstest.MapFS{}, wantErr: true},
		{name: "broken migration", fsys: fstest.MapFS{
			"migrations/1_broken.up.sql": {Data: []byte("CREATE TABLE (")},
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := sql.Open("sqlite3", dsn(filepath.Join(t.TempDir(), "history.db")))
			if err != nil {
				t.Fatal(err)
			}
			if tt.fsys == nil {
				err = runMigrations(db, migrations)
			} else {
				err = runMigrations(db, tt.fsys)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("runMigrations() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err := db.Ping(); err == nil {
				t.Error("database still open after runMigrations")
			}
		})
	}
}
