//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/kozaktomas/faceauth/internal/config"
	"github.com/kozaktomas/faceauth/internal/database"
	"github.com/kozaktomas/faceauth/internal/facematch"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestContainer(t *testing.T) (*Pool, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	pool, err := Open(ctx, cfg)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("Failed to open database: %v", err)
	}

	cleanup := func() {
		pool.Close()
		_ = container.Terminate(ctx)
	}

	return pool, cleanup
}

func testDescriptor(offset float32) facematch.Descriptor {
	d := make(facematch.Descriptor, 128)
	for i := range d {
		d[i] = offset + float32(i)/256
	}
	return d
}

func TestMigrationsIdempotent(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if err := pool.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 || applied[0] != "001_initial.sql" {
		t.Errorf("applied migrations = %v", applied)
	}
}

func TestMigrateConcurrently(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	if _, err := pool.exec(ctx, "DELETE FROM schema_migrations"); err != nil {
		t.Fatal(err)
	}

	errs := make(chan error, 3)
	for i := 0; i < 3; i++ {
		go func() { errs <- pool.Migrate(ctx) }()
	}
	for i := 0; i < 3; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Migrate() error = %v", err)
		}
	}

	applied, err := pool.MigrationsApplied(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(applied) != 1 {
		t.Errorf("applied migrations = %v, want one entry", applied)
	}
}

func TestOpen_RequiresURL(t *testing.T) {
	if _, err := Open(context.Background(), &config.DatabaseConfig{}); !errors.Is(err, errNoURL) {
		t.Errorf("Open() error = %v, want errNoURL", err)
	}
}

func TestKeyValueRepository_TemplateStore(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	mirror := NewTemplateRepository(pool)
	store := database.NewKVTemplateStore(NewKeyValueRepository(pool)).WithMirror(mirror)

	t.Run("EmptyStore", func(t *testing.T) {
		tmpl, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if tmpl != nil {
			t.Errorf("expected no template, got %+v", tmpl)
		}
	})

	t.Run("OverwriteAndMirror", func(t *testing.T) {
		if err := store.Save(ctx, "alice", testDescriptor(0)); err != nil {
			t.Fatalf("Save(alice) error = %v", err)
		}
		if err := store.Save(ctx, "bob", testDescriptor(0.5)); err != nil {
			t.Fatalf("Save(bob) error = %v", err)
		}

		tmpl, err := store.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if tmpl.Label != "bob" || len(tmpl.Descriptors) != 1 || len(tmpl.Descriptors[0]) != 128 {
			t.Errorf("unexpected template %s with %d descriptors", tmpl.Label, len(tmpl.Descriptors))
		}

		mirrored, err := mirror.Get(ctx)
		if err != nil {
			t.Fatalf("mirror Get() error = %v", err)
		}
		if mirrored == nil || mirrored.Label != "bob" || len(mirrored.Descriptors) != 1 {
			t.Errorf("mirror = %+v", mirrored)
		}
	})

	t.Run("NearestDistance", func(t *testing.T) {
		label, dist, found, err := mirror.NearestDistance(ctx, testDescriptor(0.5))
		if err != nil {
			t.Fatalf("NearestDistance() error = %v", err)
		}
		if !found || label != "bob" || dist > 1e-4 {
			t.Errorf("NearestDistance() = %s, %f, %v", label, dist, found)
		}

		_, dist, _, err = mirror.NearestDistance(ctx, testDescriptor(0.6))
		if err != nil {
			t.Fatal(err)
		}
		want := facematch.EuclideanDistance(testDescriptor(0.5), testDescriptor(0.6))
		if math.Abs(dist-want) > 1e-3 {
			t.Errorf("distance = %f, want %f", dist, want)
		}
	})
}

func TestKeyValueRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewKeyValueRepository(pool)

	if err := repo.Set(ctx, "HisabbookUser", []byte(`{"name":"alice"}`)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := repo.Get(ctx, "HisabbookUser")
	if err != nil || string(got) != `{"name":"alice"}` {
		t.Fatalf("Get() = %s, %v", got, err)
	}
	if err := repo.Delete(ctx, "HisabbookUser"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := repo.Get(ctx, "HisabbookUser"); got != nil {
		t.Errorf("expected nil after delete, got %s", got)
	}
}

func TestSessionRepository(t *testing.T) {
	pool, cleanup := setupTestContainer(t)
	if pool == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	repo := NewSessionRepository(pool)
	now := time.Now()

	if err := repo.Save(ctx, "live", "alice", now, now.Add(time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Save(ctx, "stale", "bob", now.Add(-2*time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	s, err := repo.Get(ctx, "live")
	if err != nil || s == nil || s.Username != "alice" {
		t.Fatalf("Get(live) = %+v, %v", s, err)
	}
	if s, _ := repo.Get(ctx, "stale"); s != nil {
		t.Error("expired session must not be returned")
	}

	count, err := repo.DeleteExpired(ctx)
	if err != nil || count != 1 {
		t.Errorf("DeleteExpired() = %d, %v, want 1", count, err)
	}

	if err := repo.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if s, _ := repo.Get(ctx, "live"); s != nil {
		t.Error("session should be gone after delete")
	}

	for id, user := range map[string]string{"a1": "alice", "a2": "alice", "c1": "carol"} {
		if err := repo.Save(ctx, id, user, now, now.Add(time.Hour)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
	}
	count, err = repo.DeleteOtherUsers(ctx, "carol")
	if err != nil || count != 2 {
		t.Errorf("DeleteOtherUsers() = %d, %v, want 2", count, err)
	}
	if s, _ := repo.Get(ctx, "c1"); s == nil {
		t.Error("carol's session must survive")
	}
}
