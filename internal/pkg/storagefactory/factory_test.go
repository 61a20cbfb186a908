package storagefactory

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"mentor/internal/config"
	"mentor/internal/pkg/storage"
)

func TestNewStorage(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr bool
	}{
		{
			name: "valid local storage config",
			cfg: &config.StorageConfig{
				Type:  "local",
				Local: &config.LocalConfig{BasePath: tmpDir},
			},
		},
		{
			name:    "missing local config",
			cfg:     &config.StorageConfig{Type: "local"},
			wantErr: true,
		},
		{
			name:    "missing oss config",
			cfg:     &config.StorageConfig{Type: "oss"},
			wantErr: true,
		},
		{
			name:    "unsupported storage type",
			cfg:     &config.StorageConfig{Type: "invalid"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewStorage(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStorage() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewStorage() unexpected error: %v", err)
			}
			if s.Type() != storage.TypeLocal {
				t.Errorf("Type() = %v, want local", s.Type())
			}
		})
	}
}

func TestLocalStorage_Operations(t *testing.T) {
	tmpDir := t.TempDir()
	baseURL := "http://localhost:8000/files"

	s, err := NewStorage(&config.StorageConfig{
		Type:  "local",
		Local: &config.LocalConfig{BasePath: tmpDir, BaseURL: baseURL},
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	key := storage.UploadKey("u-1", "abc", "notes.txt", time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	if key != "uploads/u-1/20240309/abc_notes.txt" {
		t.Fatalf("UploadKey() = %v", key)
	}

	url, err := s.Put(ctx, key, strings.NewReader("hello"), "text/plain")
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != baseURL+"/"+key {
		t.Errorf("Put() url = %v, want %v", url, baseURL+"/"+key)
	}

	exists, err := s.Exists(ctx, key)
	if err != nil || !exists {
		t.Errorf("Exists() = %v, %v, want true", exists, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	exists, _ = s.Exists(ctx, key)
	if exists {
		t.Errorf("Exists() = true after delete")
	}

	// 删除不存在的文件应该成功
	if err := s.Delete(ctx, "nonexistent/file.txt"); err != nil {
		t.Errorf("Delete() error = %v, should succeed for non-existent file", err)
	}
}

func TestLocalStorage_RejectsEscapingKey(t *testing.T) {
	tmpDir := t.TempDir()
	s, err := NewStorage(&config.StorageConfig{
		Type:  "local",
		Local: &config.LocalConfig{BasePath: filepath.Join(tmpDir, "root")},
	})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	if _, err := s.Put(context.Background(), "../outside.txt", strings.NewReader("x"), "text/plain"); err == nil {
		t.Errorf("Put() expected error for key outside base path")
	}
}
