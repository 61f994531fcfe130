package store

import (
	"context"
	"testing"
)

func TestCloseNilSafe(t *testing.T) {
	var d *DB
	if err := d.Close(); err != nil {
		t.Fatalf("Close on nil DB: %v", err)
	}
	if err := (&DB{}).Close(); err != nil {
		t.Fatalf("Close on empty DB: %v", err)
	}
}

func TestHealthyNilSafe(t *testing.T) {
	var r *Redis
	if r.Healthy(context.Background()) {
		t.Fatal("nil Redis must not report healthy")
	}
	if (&Redis{}).Healthy(context.Background()) {
		t.Fatal("empty Redis must not report healthy")
	}
}
