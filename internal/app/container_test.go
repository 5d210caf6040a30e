package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/config"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/internal/service/database"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Catalog: config.CatalogConfig{
			Source: config.CatalogSourceEmbedded,
		},
		Database: config.DatabaseConfig{Driver: database.DriverSQLite},
		Chat:     config.ChatConfig{RateLimit: 10},
	}
}

func TestBuildEmbeddedWithoutBackends(t *testing.T) {
	c, err := Build(context.Background(), baseConfig(), zap.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer c.Close()

	if c.Cache != nil || c.Store != nil || c.Models != nil {
		t.Fatal("no optional backend should be wired")
	}
	if c.Assistant.Enabled() {
		t.Fatal("assistant must be offline without an API key")
	}

	reply, err := c.Assistant.Ask(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Ask returned error: %v", err)
	}
	if reply.Reply != constants.ChatMessages.Offline {
		t.Fatalf("expected offline reply, got %q", reply.Reply)
	}

	rec := httptest.NewRecorder()
	c.Server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("readiness without checks should pass, got %d", rec.Code)
	}
}

func TestBuildWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: mr.Host(), Port: port}

	c, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer c.Close()

	if c.Cache == nil {
		t.Fatal("expected cache to be wired")
	}
	checks := c.readinessChecks()
	if len(checks) != 1 || checks[0].Name != "redis" {
		t.Fatalf("unexpected checks %+v", checks)
	}
}

func TestBuildSurvivesUnreachableRedis(t *testing.T) {
	cfg := baseConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Host: "127.0.0.1", Port: 1}

	c, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer c.Close()

	if c.Cache != nil {
		t.Fatal("unreachable Redis must be left out")
	}
}

func TestBuildFromFileAndWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := catalog.Default().Document()
	doc.Owner = "File Owner"
	writeYAML(t, path, doc)

	cfg := baseConfig()
	cfg.Catalog = config.CatalogConfig{Source: config.CatalogSourceFile, File: path, Watch: true}

	c, err := Build(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	if got := c.Catalog.Current().Owner(); got != "File Owner" {
		t.Fatalf("expected file catalog, got owner %q", got)
	}

	cancel()
	c.Close()
}

func TestBuildRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("rows: ["), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := baseConfig()
	cfg.Catalog = config.CatalogConfig{Source: config.CatalogSourceFile, File: path}

	if _, err := Build(context.Background(), cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for an invalid catalog file")
	}
}

func TestBuildFromDatabase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	store, err := database.OpenStore(ctx, database.StoreConfig{Driver: database.DriverSQLite, DSN: dsn}, nil)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	err = store.UpsertCards(ctx, []database.CardRecord{
		{RowID: catalog.RowContact, Position: 0, Card: &domain.Card{ID: "db-mail", Title: "Mail", Category: domain.CategoryContact}},
	})
	if err != nil {
		t.Fatalf("UpsertCards: %v", err)
	}
	_ = store.Close()

	cfg := baseConfig()
	cfg.Catalog.Source = config.CatalogSourceDatabase
	cfg.Database = config.DatabaseConfig{Driver: database.DriverSQLite, DSN: dsn}

	c, err := Build(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	defer c.Close()

	rows := c.Catalog.Current().Rows()
	if len(rows) != 1 || rows[0].ID != catalog.RowContact || rows[0].Cards[0].ID != "db-mail" {
		t.Fatalf("expected only the database row, got %d rows", len(rows))
	}
	if checks := c.readinessChecks(); len(checks) != 1 || checks[0].Name != "database" {
		t.Fatalf("unexpected checks %+v", checks)
	}
}

func TestBuildRequiresConfigAndLogger(t *testing.T) {
	if _, err := Build(context.Background(), nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := Build(context.Background(), baseConfig(), nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}

func writeYAML(t *testing.T, path string, doc catalog.Document) {
	t.Helper()
	data, err := yaml.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}
