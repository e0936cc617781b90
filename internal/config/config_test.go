package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("database.driver = %q, want mysql", cfg.Database.Driver)
	}
	if cfg.Presence.OnlineWindow != 2*time.Minute {
		t.Errorf("presence.online_window = %v, want 2m", cfg.Presence.OnlineWindow)
	}
	if cfg.Presence.IdleWindow != 10*time.Minute {
		t.Errorf("presence.idle_window = %v, want 10m", cfg.Presence.IdleWindow)
	}
	if cfg.Presence.FixOneWindow != 10*time.Minute || cfg.Presence.FixAllWindow != 2*time.Minute {
		t.Errorf("fix windows = %v / %v, want 10m / 2m", cfg.Presence.FixOneWindow, cfg.Presence.FixAllWindow)
	}
	if cfg.Commands.PollLimit != 10 || cfg.Commands.MaxAttempts != 0 {
		t.Errorf("commands = %+v, want poll_limit 10 and unbounded attempts", cfg.Commands)
	}
	if cfg.JWT.DeviceExpire != 720*time.Hour {
		t.Errorf("jwt.device_expire = %v, want 720h", cfg.JWT.DeviceExpire)
	}
	if cfg.Redis.Enabled {
		t.Error("redis should be disabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: 9090
database:
  driver: sqlite
  sqlite_path: /tmp/x.db
presence:
  fix_all_window: 90s
commands:
  max_attempts: 5
`)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MYSQL_HOST", "db.internal")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.SQLitePath != "/tmp/x.db" {
		t.Errorf("database = %+v", cfg.Database)
	}
	if cfg.Presence.FixAllWindow != 90*time.Second {
		t.Errorf("fix_all_window = %v, want 90s", cfg.Presence.FixAllWindow)
	}
	if cfg.Commands.MaxAttempts != 5 {
		t.Errorf("max_attempts = %d, want 5", cfg.Commands.MaxAttempts)
	}
	if cfg.MySQL.Host != "db.internal" {
		t.Errorf("mysql.host = %q, want env override", cfg.MySQL.Host)
	}
}
