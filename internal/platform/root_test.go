package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFindRoot(t *testing.T) {
	// base/
	//   vault/ (.verbatim)
	//     subdir/nested/
	//   configured/ (verbatim.yaml)
	//     inner/
	//   empty/
	baseDir := t.TempDir()
	vaultDir := filepath.Join(baseDir, "vault")
	subDir := filepath.Join(vaultDir, "subdir")
	nestedDir := filepath.Join(subDir, "nested")
	configured := filepath.Join(baseDir, "configured")
	innerDir := filepath.Join(configured, "inner")
	emptyDir := filepath.Join(baseDir, "empty")

	for _, dir := range []string{nestedDir, innerDir, emptyDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(vaultDir, ".verbatim"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configured, ConfigFileName), []byte("check:\n  max_matches: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		startPath string
		wantRoot  string
		wantErr   bool
	}{
		{name: "Start at Root", startPath: vaultDir, wantRoot: vaultDir},
		{name: "Start in Subdir", startPath: subDir, wantRoot: vaultDir},
		{name: "Start Nested Deeply", startPath: nestedDir, wantRoot: vaultDir},
		{name: "Config File Marker", startPath: innerDir, wantRoot: configured},
		{name: "No Root Found", startPath: emptyDir, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FindRoot(tt.startPath)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FindRoot() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, ErrRootNotFound) {
					t.Errorf("FindRoot() error = %v, want ErrRootNotFound", err)
				}
				return
			}
			if filepath.Clean(got) != filepath.Clean(tt.wantRoot) {
				t.Errorf("FindRoot() = %v, want %v", got, tt.wantRoot)
			}
		})
	}
}
