package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/fingervote/internal/audit"
	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanapi"
)

func withHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func TestLoadConfig_Defaults(t *testing.T) {
	home := withHome(t)

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.BackendURL != defaultBackendURL {
		t.Fatalf("backend-url = %q", cfg.BackendURL)
	}
	if cfg.PollInterval != model.DefaultPollInterval || cfg.MaxWait != model.DefaultMaxWait {
		t.Fatalf("intervals = %v / %v", cfg.PollInterval, cfg.MaxWait)
	}
	if cfg.Paths != scanapi.DefaultPaths() {
		t.Fatalf("paths = %+v", cfg.Paths)
	}
	wantDB := filepath.Join(home, ".local", "share", "fingervote", "fingervote.duckdb")
	if cfg.DBPath != wantDB {
		t.Fatalf("db-path = %q, want %q", cfg.DBPath, wantDB)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("config path = %q, want none", cfg.ConfigPath)
	}
}

func TestLoadConfig_FileEnvAndFlags(t *testing.T) {
	home := withHome(t)
	path := filepath.Join(t.TempDir(), "config.yml")
	body := strings.Join([]string{
		"backend-url: http://kiosk.local:9000",
		"poll-interval: 500ms",
		"max-wait: -1s",
		"db-path: ~/votes.duckdb",
		"paths:",
		"  scan-result: /voting/scan-result/",
	}, "\n")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINGERVOTE_SESSION_TIMEOUT", "90s")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("simulated", false, "")
	flags.String("backend-url", "", "")
	if err := flags.Parse([]string{"--simulated"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, flags)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.BackendURL != "http://kiosk.local:9000" {
		t.Fatalf("unchanged flag overrode the file: %q", cfg.BackendURL)
	}
	if !cfg.Simulated {
		t.Fatal("--simulated not applied")
	}
	if cfg.PollInterval != 500*time.Millisecond || cfg.MaxWait != -time.Second {
		t.Fatalf("intervals = %v / %v", cfg.PollInterval, cfg.MaxWait)
	}
	if cfg.SessionTimeout != 90*time.Second {
		t.Fatalf("session-timeout = %v", cfg.SessionTimeout)
	}
	if cfg.Paths.ScanResult != "/voting/scan-result/" || cfg.Paths.TriggerScan != scanapi.DefaultPaths().TriggerScan {
		t.Fatalf("paths = %+v", cfg.Paths)
	}
	if cfg.DBPath != filepath.Join(home, "votes.duckdb") {
		t.Fatalf("db-path = %q", cfg.DBPath)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("config path = %q", cfg.ConfigPath)
	}
	if sc := cfg.scanConfig(); sc.MaxWait != -time.Second || sc.TestFingerprintID != model.DefaultTestFingerprintID {
		t.Fatalf("scan config = %+v", sc)
	}
}

func TestLoadConfig_EnvPathsOverride(t *testing.T) {
	withHome(t)
	t.Setenv("FINGERVOTE_PATHS_VERIFY", "/voting/verify/")

	cfg, err := loadConfig("", nil)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Paths.Verify != "/voting/verify/" {
		t.Fatalf("verify path = %q", cfg.Paths.Verify)
	}
}

func TestLoadConfig_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  string
		val  string
		want string
	}{
		{"relative url", "FINGERVOTE_BACKEND_URL", "/api", "backend-url"},
		{"bad scheme", "FINGERVOTE_BACKEND_URL", "ftp://x", "backend-url"},
		{"zero poll", "FINGERVOTE_POLL_INTERVAL", "0s", "poll-interval"},
		{"bad level", "FINGERVOTE_LOG_LEVEL", "loud", "log-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withHome(t)
			t.Setenv(tt.env, tt.val)
			_, err := loadConfig("", nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %s", err, tt.want)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("FINGERVOTE_TEST_ENV_KEY=from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FINGERVOTE_TEST_ENV_KEY", "")
	os.Unsetenv("FINGERVOTE_TEST_ENV_KEY")

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile: %v", err)
	}
	if got := os.Getenv("FINGERVOTE_TEST_ENV_KEY"); got != "from-file" {
		t.Fatalf("env = %q", got)
	}
	if err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err == nil {
		t.Fatal("explicit missing env file accepted")
	}
}

func TestReadHistoryKeepsNewest(t *testing.T) {
	j, err := audit.Open(filepath.Join(t.TempDir(), "journal.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()

	at := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, voter := range []string{"Ann", "Bob", "Cy"} {
		ev := audit.Event{Time: at.Add(time.Duration(i) * time.Minute), Kind: audit.KindActivity, Voter: voter, Action: "Login", Status: model.ActivitySuccess}
		seq, err := j.Append(ev)
		if err != nil {
			t.Fatal(err)
		}
		if voter != "Cy" {
			if err := j.Commit(seq); err != nil {
				t.Fatal(err)
			}
		}
	}

	entries, err := readHistory(j, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].Event.Voter != "Bob" || entries[1].Event.Voter != "Cy" {
		t.Fatalf("entries = %+v", entries)
	}
	if !entries[0].Committed || entries[1].Committed {
		t.Fatalf("committed flags = %v %v", entries[0].Committed, entries[1].Committed)
	}

	out := renderHistory(entries)
	if !strings.Contains(out, "Bob") || !strings.Contains(out, "3*") {
		t.Fatalf("rendered:\n%s", out)
	}
	if renderHistory(nil) != "No journal entries." {
		t.Fatal("empty journal not reported")
	}
}
