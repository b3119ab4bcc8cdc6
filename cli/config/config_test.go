package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pithecene-io/ferry/picker"
	"github.com/pithecene-io/ferry/storage"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ferry.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func assertEqual(t *testing.T, field, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("%s = %q, want %q", field, got, want)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	yaml := `namespace: dev.example

log:
  level: debug
  file: /tmp/ferry.log

ipc:
  listen: /tmp/ferry.sock
  max_in_flight: 4
  compress_threshold: 2048

picker:
  timeout: 30s
  max_media_count: 3
  media:
    path: /usr/bin/pick-media
    args: ["--max", "{max_count}"]
    output: json
  document:
    path: /usr/bin/zenity
    args: ["--file-selection"]
    cancel_exit_codes: [1]
  directory:
    path: /usr/bin/zenity
    args: ["--file-selection", "--directory"]
    output: lines

materialize:
  max_size: 1048576

storage:
  backend: s3
  path: my-bucket/ferry
  region: us-east-1
  endpoint: https://minio.local
  s3_path_style: true

archive:
  enabled: true
  history: true

notify:
  type: webhook
  url: https://hooks.example.com/ferry
  headers:
    Authorization: Bearer token123
  timeout: 10s
  retries: 2

metrics:
  listen: 127.0.0.1:9464
`
	cfg, err := Load(writeTemp(t, yaml))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	assertEqual(t, "namespace", cfg.Namespace, "dev.example")
	assertEqual(t, "log.level", cfg.Log.Level, "debug")
	assertEqual(t, "ipc.listen", cfg.IPC.Listen, "/tmp/ferry.sock")
	if cfg.IPC.MaxInFlight != 4 || cfg.IPC.CompressThreshold != 2048 {
		t.Errorf("ipc = %+v", cfg.IPC)
	}
	if cfg.Picker.Timeout.Duration != 30*time.Second {
		t.Errorf("picker.timeout = %v, want 30s", cfg.Picker.Timeout.Duration)
	}
	if cfg.Picker.MaxMediaCount != 3 {
		t.Errorf("picker.max_media_count = %d, want 3", cfg.Picker.MaxMediaCount)
	}
	assertEqual(t, "picker.media.path", cfg.Picker.Media.Path, "/usr/bin/pick-media")
	if len(cfg.Picker.Document.CancelExitCodes) != 1 || cfg.Picker.Document.CancelExitCodes[0] != 1 {
		t.Errorf("picker.document.cancel_exit_codes = %v, want [1]", cfg.Picker.Document.CancelExitCodes)
	}
	if cfg.Materialize.MaxSize != 1048576 {
		t.Errorf("materialize.max_size = %d", cfg.Materialize.MaxSize)
	}
	assertEqual(t, "storage.backend", cfg.Storage.Backend, "s3")
	if !cfg.Storage.S3PathStyle {
		t.Error("expected storage.s3_path_style=true")
	}
	if !cfg.Archive.Enabled || !cfg.Archive.History {
		t.Errorf("archive = %+v", cfg.Archive)
	}
	assertEqual(t, "notify.type", cfg.Notify.Type, "webhook")
	assertEqual(t, "notify.headers.Authorization", cfg.Notify.Headers["Authorization"], "Bearer token123")
	if cfg.Notify.Timeout.Duration != 10*time.Second {
		t.Errorf("notify.timeout = %v, want 10s", cfg.Notify.Timeout.Duration)
	}
	if cfg.Notify.Retries == nil || *cfg.Notify.Retries != 2 {
		t.Errorf("notify.retries = %v, want 2", cfg.Notify.Retries)
	}
	assertEqual(t, "metrics.listen", cfg.Metrics.Listen, "127.0.0.1:9464")

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("FERRY_TEST_HOOK", "https://hooks.example.com/x")

	cfg, err := Load(writeTemp(t, `notify:
  type: ${FERRY_TEST_TYPE:-webhook}
  url: ${FERRY_TEST_HOOK}
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	assertEqual(t, "notify.type", cfg.Notify.Type, "webhook")
	assertEqual(t, "notify.url", cfg.Notify.URL, "https://hooks.example.com/x")
}

func TestLoad_Empty(t *testing.T) {
	cfg, err := Load(writeTemp(t, ""))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Namespace != "" || cfg.Notify.Type != "" {
		t.Errorf("expected zero config, got %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed: %v", err)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "namespac: x\n", "field namespac not found"},
		{"bad duration", "picker:\n  timeout: soon\n", "invalid duration"},
		{"bad yaml", "picker: [\n", "invalid YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTemp(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	negative := -1
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"log level", Config{Log: LogConfig{Level: "loud"}}, "log.level"},
		{"in flight", Config{IPC: IPCConfig{MaxInFlight: -1}}, "ipc.max_in_flight"},
		{"timeout", Config{Picker: PickerConfig{Timeout: Duration{-time.Second}}}, "picker.timeout"},
		{"helper path", Config{Picker: PickerConfig{Media: &CommandConfig{}}}, "picker.media.path"},
		{"helper output", Config{Picker: PickerConfig{Directory: &CommandConfig{Path: "x", Output: "xml"}}}, "picker.directory.output"},
		{"max size", Config{Materialize: MaterializeConfig{MaxSize: -5}}, "materialize.max_size"},
		{"storage backend", Config{Storage: StorageConfig{Backend: "tape"}}, "unknown storage backend"},
		{"fs path", Config{Storage: StorageConfig{Backend: "fs"}}, "storage path is required"},
		{"s3 bucket", Config{Storage: StorageConfig{Backend: "s3"}}, "S3 bucket is required"},
		{"archive storage", Config{Archive: ArchiveConfig{Enabled: true}}, "archive.enabled"},
		{"notify type", Config{Notify: NotifyConfig{Type: "kafka"}}, "notify.type"},
		{"notify url", Config{Notify: NotifyConfig{Type: NotifyRedis}}, "notify.url"},
		{"notify retries", Config{Notify: NotifyConfig{Retries: &negative}}, "notify.retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestPickerConfig_Commands(t *testing.T) {
	p := PickerConfig{
		Media:     &CommandConfig{Path: "/bin/media", Output: "json"},
		Directory: &CommandConfig{Path: "/bin/dir", CancelExitCodes: []int{1, 5}},
	}
	cmds := p.Commands()
	if len(cmds) != 2 {
		t.Fatalf("len(Commands) = %d, want 2", len(cmds))
	}
	if cmds[picker.ModeMedia].Output != picker.OutputJSON {
		t.Errorf("media output = %q, want json", cmds[picker.ModeMedia].Output)
	}
	if _, ok := cmds[picker.ModeDocument]; ok {
		t.Error("document mode should be absent")
	}
	if got := cmds[picker.ModeDirectory].CancelExitCodes; len(got) != 2 {
		t.Errorf("directory cancel codes = %v", got)
	}
}

func TestStorageConfig_S3(t *testing.T) {
	s := StorageConfig{Backend: "s3", Path: "bucket/some/prefix", Region: "eu-west-1", S3PathStyle: true}
	cfg := s.StorageConfig()
	if cfg.Backend != storage.BackendS3 {
		t.Errorf("Backend = %q, want s3", cfg.Backend)
	}
	assertEqual(t, "bucket", cfg.S3.Bucket, "bucket")
	assertEqual(t, "prefix", cfg.S3.Prefix, "some/prefix")
	assertEqual(t, "region", cfg.S3.Region, "eu-west-1")
	if !cfg.S3.UsePathStyle {
		t.Error("expected UsePathStyle")
	}
}

func TestStorageConfig_FS(t *testing.T) {
	s := StorageConfig{Backend: "fs", Path: "/var/lib/ferry"}
	cfg := s.StorageConfig()
	if cfg.Backend != storage.BackendFS || cfg.Path != "/var/lib/ferry" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.S3.Bucket != "" {
		t.Errorf("S3.Bucket = %q, want empty", cfg.S3.Bucket)
	}
}
