package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestFinalize(t *testing.T) {
	t.Setenv("TEST_STORAGE_CONTAINER", "audit")
	t.Setenv("TEST_STORAGE_URL", "https://acct.blob.core.windows.net/")

	cfg := Config{}
	if cfg.Enabled() {
		t.Error("empty config should not be enabled")
	}

	if err := cfg.Finalize(&Env{
		ContainerName: "TEST_STORAGE_CONTAINER",
		ServiceURL:    "TEST_STORAGE_URL",
	}); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}

	if cfg.ContainerName != "audit" {
		t.Errorf("container_name: got %s, want audit", cfg.ContainerName)
	}
	if !cfg.Enabled() {
		t.Error("service url should enable storage")
	}
}

func TestFinalizeDefaults(t *testing.T) {
	cfg := Config{ConnectionString: "UseDevelopmentStorage=true"}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize failed: %v", err)
	}
	if cfg.ContainerName != "evidence" {
		t.Errorf("container_name: got %s, want evidence", cfg.ContainerName)
	}
}

func TestFinalizeValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"both credentials", Config{ConnectionString: "x", ServiceURL: "https://a.blob.core.windows.net"}, "mutually exclusive"},
		{"plain http", Config{ServiceURL: "http://a.blob.core.windows.net"}, "https URL"},
		{"no host", Config{ServiceURL: "https://"}, "https URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	base := Config{ContainerName: "evidence", ConnectionString: "base"}
	base.Merge(&Config{ContainerName: "audit"})

	if base.ContainerName != "audit" {
		t.Errorf("container_name: got %s, want audit", base.ContainerName)
	}
	if base.ConnectionString != "base" {
		t.Errorf("connection_string should be preserved, got %s", base.ConnectionString)
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(&Config{ContainerName: "evidence"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("got %v, want ErrNotConfigured", err)
	}
}

func TestCheckKey(t *testing.T) {
	tests := []struct {
		key  string
		want error
	}{
		{"evidence/abc.zip", nil},
		{"evidence/..hidden.zip", nil},
		{"", ErrEmptyKey},
		{"/evidence/abc.zip", ErrInvalidKey},
		{"../etc/passwd", ErrInvalidKey},
		{"evidence/../../x", ErrInvalidKey},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := checkKey(tt.key); !errors.Is(got, tt.want) {
				t.Errorf("checkKey(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestKeyCheckedBeforeNetwork(t *testing.T) {
	a := &azure{container: "evidence", logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	err := a.Put(context.Background(), "", strings.NewReader("x"), Object{ContentType: "text/plain"})
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("put: got %v, want ErrEmptyKey", err)
	}
	if _, _, err := a.Get(context.Background(), "../x"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("get: got %v, want ErrInvalidKey", err)
	}
}

func TestMetadataMaps(t *testing.T) {
	if toPtrMap(nil) != nil {
		t.Error("empty metadata should be sent as nil")
	}

	ptrs := toPtrMap(map[string]string{"merkle_root": "abc"})
	if v := ptrs["merkle_root"]; v == nil || *v != "abc" {
		t.Fatalf("toPtrMap: got %v", ptrs)
	}

	back := fromPtrMap(map[string]*string{"Merkle_Root": ptrs["merkle_root"], "skipped": nil})
	if len(back) != 1 || back["merkle_root"] != "abc" {
		t.Errorf("fromPtrMap: got %v", back)
	}
}
