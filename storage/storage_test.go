package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/justapithecus/lode/lode"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"fs with path", Config{Backend: BackendFS, Path: "/tmp/x"}, false},
		{"fs without path", Config{Backend: BackendFS}, true},
		{"s3 with bucket", Config{Backend: BackendS3, S3: S3Config{Bucket: "b"}}, false},
		{"s3 without bucket", Config{Backend: BackendS3}, true},
		{"memory", Config{Backend: BackendMemory}, false},
		{"unknown", Config{Backend: "tape"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct {
		path, bucket, prefix string
	}{
		{"bucket", "bucket", ""},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		bucket, prefix := ParseS3Path(tt.path)
		if bucket != tt.bucket || prefix != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q, want %q, %q", tt.path, bucket, prefix, tt.bucket, tt.prefix)
		}
	}
}

func TestOpen_MemoryShared(t *testing.T) {
	ctx := t.Context()
	factory, err := Open(ctx, Config{Backend: BackendMemory})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	a, err := factory()
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if err := a.Put(ctx, "k", bytes.NewReader([]byte("v"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	b, _ := factory()
	ok, err := b.Exists(ctx, "k")
	if err != nil || !ok {
		t.Errorf("Exists = %v, %v, want true from shared store", ok, err)
	}
}

func TestOpen_FS(t *testing.T) {
	ctx := t.Context()
	root := filepath.Join(t.TempDir(), "nested", "store")
	factory, err := Open(ctx, Config{Backend: BackendFS, Path: root})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := os.Stat(root); err != nil {
		t.Fatalf("root not created: %v", err)
	}

	store, err := factory()
	if err != nil {
		t.Fatalf("factory failed: %v", err)
	}
	if err := store.Put(ctx, "a/b.txt", bytes.NewReader([]byte("hello"))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	rc, err := store.Get(ctx, "a/b.txt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Errorf("data = %q, want hello", data)
	}
}

func TestLazy_CallsOnce(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	f := Lazy(func() (lode.Store, error) {
		calls++
		return nil, boom
	})
	for range 3 {
		if _, err := f(); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "slow" }
func (timeoutErr) Timeout() bool { return true }

func TestWrapReadError_Classification(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{errors.New("open /x: no such file or directory"), ErrNotFound},
		{errors.New("NoSuchKey: key missing"), ErrNotFound},
		{errors.New("open /x: permission denied"), ErrPermissionDenied},
		{errors.New("write: no space left on device"), ErrDiskFull},
		{errors.New("SlowDown: please reduce"), ErrThrottled},
		{errors.New("ExpiredToken: token expired"), ErrAuth},
		{errors.New("AccessDenied: nope"), ErrAccessDenied},
		{errors.New("dial tcp 10.0.0.1:443: connection refused"), ErrNetwork},
		{timeoutErr{}, ErrTimeout},
		{errors.New("weird"), ErrUnclassified},
	}
	for _, tt := range tests {
		err := WrapReadError(tt.err, "p")
		if !errors.Is(err, tt.want) {
			t.Errorf("WrapReadError(%q) kind = %v, want %v", tt.err, err, tt.want)
		}
		if !errors.Is(err, tt.err) {
			t.Errorf("WrapReadError(%q) lost its cause", tt.err)
		}
	}
}

func TestWrap_NilAndIdempotent(t *testing.T) {
	if WrapWriteError(nil, "p") != nil {
		t.Error("WrapWriteError(nil) should be nil")
	}
	first := WrapReadError(errors.New("not found"), "p")
	if again := WrapReadError(first, "q"); again != first {
		t.Errorf("rewrapped error = %v, want original", again)
	}

	var se *Error
	if !errors.As(WrapOpenError(context.DeadlineExceeded, "s3"), &se) || se.Op != "open" {
		t.Errorf("WrapOpenError should produce an open *Error")
	}
}
