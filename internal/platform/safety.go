package platform

import (
	"os"
	"path/filepath"
	"strings"
)

// devDirName is the temp subdirectory holding sandboxed vaults.
const devDirName = "verbatim-dev"

// IsDevRun reports whether the process runs via `go run` or `go test`.
// Both build binaries in temporary directories.
func IsDevRun() bool {
	exe, err := os.Executable()
	if err != nil {
		return false
	}
	if strings.HasPrefix(strings.ToLower(exe), strings.ToLower(os.TempDir())) {
		return true
	}
	return strings.HasSuffix(exe, ".test") || strings.HasSuffix(exe, ".test.exe")
}

// ResolveVaultPath returns the path the vault should actually use.
// With forceTemp, paths outside the temp directory are re-rooted under
// <tmp>/verbatim-dev/<base name>.
func ResolveVaultPath(userPath string, forceTemp bool) string {
	if !forceTemp {
		if userPath == "" {
			return "."
		}
		return userPath
	}

	clean := filepath.Clean(userPath)
	if filepath.IsAbs(clean) {
		if rel, err := filepath.Rel(os.TempDir(), clean); err == nil && !strings.HasPrefix(rel, "..") {
			return clean
		}
	}

	name := filepath.Base(clean)
	if userPath == "" || name == "." || name == string(os.PathSeparator) {
		name = "default"
	}
	return filepath.Join(os.TempDir(), devDirName, name)
}
