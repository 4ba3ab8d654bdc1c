package db

import (
	"context"
	"testing"
)

func TestOpenSQLiteAppliesSchemaTwice(t *testing.T) {
	ctx := context.Background()
	dsn := "file:connecttest?mode=memory&cache=shared"
	first, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer first.Close()
	second, err := Open(ctx, DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	var n int
	if err := second.QueryRowContext(ctx, `SELECT COUNT(*) FROM event_log`).Scan(&n); err != nil || n != 0 {
		t.Fatalf("event_log count = %d, %v", n, err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Driver("mysql"), ""); err == nil {
		t.Fatal("mysql accepted")
	}
}
