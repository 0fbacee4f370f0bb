package logging

import (
	"compress/gzip"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

const logPath = "/var/log/agent/agent.log"

func TestRotatingWriter_AppendsToExisting(t *testing.T) {
	fsys := afero.NewMemMapFs()
	if err := afero.WriteFile(fsys, logPath, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	rw, err := NewRotatingWriter(fsys, logPath, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter() error: %v", err)
	}
	if rw.Size() != 4 {
		t.Errorf("Size() = %d, want 4", rw.Size())
	}
	if _, err := rw.Write([]byte("new\n")); err != nil {
		t.Fatal(err)
	}
	_ = rw.Close()

	data, _ := afero.ReadFile(fsys, logPath)
	if string(data) != "old\nnew\n" {
		t.Errorf("content = %q, want %q", data, "old\nnew\n")
	}
}

func TestRotatingWriter_Rotation(t *testing.T) {
	tests := []struct {
		name        string
		maxBackups  int
		writes      int
		wantBackups []string
		wantMissing []string
	}{
		{
			name:        "keeps newest backups",
			maxBackups:  2,
			writes:      4,
			wantBackups: []string{logPath + ".1", logPath + ".2"},
			wantMissing: []string{logPath + ".3"},
		},
		{
			name:        "no backups truncates",
			maxBackups:  0,
			writes:      3,
			wantMissing: []string{logPath + ".1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			rw, err := NewRotatingWriter(fsys, logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: tt.maxBackups})
			if err != nil {
				t.Fatal(err)
			}
			chunk := []byte(strings.Repeat("x", 700*1024))
			for i := 0; i < tt.writes; i++ {
				if _, err := rw.Write(chunk); err != nil {
					t.Fatalf("Write #%d error: %v", i, err)
				}
			}
			_ = rw.Close()

			for _, p := range tt.wantBackups {
				if ok, _ := afero.Exists(fsys, p); !ok {
					t.Errorf("backup %s missing", p)
				}
			}
			for _, p := range tt.wantMissing {
				if ok, _ := afero.Exists(fsys, p); ok {
					t.Errorf("unexpected file %s", p)
				}
			}
			info, err := fsys.Stat(logPath)
			if err != nil {
				t.Fatalf("current log missing: %v", err)
			}
			if info.Size() != int64(len(chunk)) {
				t.Errorf("current log size = %d, want %d", info.Size(), len(chunk))
			}
		})
	}
}

func TestRotatingWriter_Compression(t *testing.T) {
	fsys := afero.NewMemMapFs()
	rw, err := NewRotatingWriter(fsys, logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatal(err)
	}
	first := strings.Repeat("a", 800*1024)
	_, _ = rw.Write([]byte(first))
	_, _ = rw.Write([]byte(strings.Repeat("b", 800*1024)))
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}

	if ok, _ := afero.Exists(fsys, logPath+".1"); ok {
		t.Error("uncompressed backup left behind")
	}
	f, err := fsys.Open(logPath + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != first {
		t.Errorf("decompressed backup has %d bytes, want %d", len(data), len(first))
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw, err := NewRotatingWriter(afero.NewMemMapFs(), logPath, DefaultRotationConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := rw.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := rw.Write([]byte("late")); err == nil {
		t.Error("Write after Close succeeded, want error")
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
}
