package infra

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

type stepMigrator struct {
	ran *[]int
	id  int
	err error
}

func (m stepMigrator) Migrate(context.Context) error {
	*m.ran = append(*m.ran, m.id)
	return m.err
}

func TestMigrateStopsAtFirstFailure(t *testing.T) {
	var ran []int
	err := Migrate(context.Background(),
		stepMigrator{ran: &ran, id: 1},
		stepMigrator{ran: &ran, id: 2, err: errors.New("boom")},
		stepMigrator{ran: &ran, id: 3},
	)
	if err == nil {
		t.Fatalf("expected migration error")
	}
	if len(ran) != 2 {
		t.Fatalf("expected two migrations to run, got %v", ran)
	}
}

func TestNewRedisClient(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr()+"/0", "")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if _, err := NewRedisClient(context.Background(), "", ""); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
