package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AUTH_MODE", "dev")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Database.Driver != "memory" {
		t.Fatalf("expected memory driver, got %q", cfg.Database.Driver)
	}
	if cfg.Storage.Bucket != "pulse-dev" {
		t.Fatalf("unexpected bucket %q", cfg.Storage.Bucket)
	}
	if cfg.Recommend.TMDBRegion != "IN" {
		t.Fatalf("unexpected region %q", cfg.Recommend.TMDBRegion)
	}
	if cfg.AI.HistoryLimit != 6 {
		t.Fatalf("expected history limit 6, got %d", cfg.AI.HistoryLimit)
	}
	addr, err := cfg.Server.ListenAddr()
	if err != nil || addr != ":8000" {
		t.Fatalf("unexpected listen addr %q (%v)", addr, err)
	}
}

func TestLoadParsesCORSOrigins(t *testing.T) {
	t.Setenv("AUTH_MODE", "dev")
	t.Setenv("BACKEND_CORS_ORIGINS", "http://localhost:3000,https://pulse.app")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://pulse.app" {
		t.Fatalf("unexpected origins %v", cfg.Server.CORSOrigins)
	}
}

func TestLoadFailsWithoutSupabaseSettings(t *testing.T) {
	t.Setenv("AUTH_MODE", "supabase")
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "SUPABASE_URL") {
		t.Fatalf("expected supabase error, got %v", err)
	}
}

func TestLoadFailsWithoutDatabaseURL(t *testing.T) {
	t.Setenv("AUTH_MODE", "dev")
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Fatalf("expected database error, got %v", err)
	}
}

func TestLoadFailsWithoutS3Credentials(t *testing.T) {
	t.Setenv("AUTH_MODE", "dev")
	t.Setenv("BLOB_DRIVER", "s3")
	t.Setenv("S3_ENDPOINT", "")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "S3_ENDPOINT") {
		t.Fatalf("expected s3 error, got %v", err)
	}
}

func TestListenAddr(t *testing.T) {
	cases := map[string]string{
		"9000":           ":9000",
		":9000":          ":9000",
		"127.0.0.1:9000": "127.0.0.1:9000",
	}
	for port, want := range cases {
		got, err := ServerConfig{Port: port}.ListenAddr()
		if err != nil || got != want {
			t.Fatalf("ListenAddr(%q) = %q, %v; want %q", port, got, err, want)
		}
	}
	if _, err := (ServerConfig{Port: "80 80"}).ListenAddr(); err == nil {
		t.Fatal("expected error for port with spaces")
	}
}

func TestAIConfigEnabled(t *testing.T) {
	if (AIConfig{Model: "m"}).Enabled() {
		t.Fatal("expected disabled without credentials")
	}
	if !(AIConfig{Model: "m", APIKey: "k"}).Enabled() {
		t.Fatal("expected enabled with api key")
	}
	if !(AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}).Enabled() {
		t.Fatal("expected enabled with ak/sk")
	}
}
