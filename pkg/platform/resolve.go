package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDirectoryPatterns lists candidate directory names, relative to a
// code root, checked for each platform in order.
func DefaultDirectoryPatterns() map[Platform][]string {
	return map[Platform][]string{
		Frontend: {"frontend", "fe", "web", "client", "ui", "src/app", "src/components", "webapp"},
		Backend:  {"backend", "be", "server", "api", "src/api", "src/services", "services"},
		Mobile:   {"mobile", "app", "ios", "android", "flutter", "react-native", "lib"},
		DevOps:   {"devops", "infra", "deployment", "docker", "k8s", "kubernetes", ".github", "ci-cd", "pipeline", "terraform"},
	}
}

// platformFiles are the extensions (or lower-case base names) that make a
// directory look like it belongs to a platform.
var platformFiles = map[Platform][]string{
	Frontend: {".tsx", ".ts", ".jsx", ".js", ".vue", ".svelte", ".html", ".css", ".scss"},
	Backend:  {".cs", ".py", ".java", ".go", ".php", ".rb", ".sql"},
	Mobile:   {".dart", ".kt", ".swift", ".java", ".xml"},
	DevOps:   {".yml", ".yaml", "dockerfile", ".tf", ".json", ".bicep", ".sh", ".ps1"},
}

// ResolveDirectories finds platform code directories below root. A candidate
// directory is accepted when it contains at least minFiles files with a
// platform extension. A directory is claimed by at most one platform.
func ResolveDirectories(root string, patterns map[Platform][]string, minFiles int) (map[Platform]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("reading code root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("code root %s is not a directory", root)
	}
	if patterns == nil {
		patterns = DefaultDirectoryPatterns()
	}
	if minFiles <= 0 {
		minFiles = 3
	}

	found := make(map[Platform]string)
	claimed := make(map[string]bool)
	for _, p := range All() {
		for _, pat := range patterns[p] {
			candidate := filepath.Join(root, filepath.FromSlash(pat))
			if claimed[candidate] {
				continue
			}
			st, err := os.Stat(candidate)
			if err != nil || !st.IsDir() {
				continue
			}
			if countPlatformFiles(candidate, p, minFiles) >= minFiles {
				found[p] = candidate
				claimed[candidate] = true
				break
			}
		}
	}
	return found, nil
}

var errEnough = errors.New("enough files")

// countPlatformFiles counts matching files, stopping once limit is reached.
func countPlatformFiles(dir string, p Platform, limit int) int {
	exts := platformFiles[p]
	count := 0
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && (d.Name() == "node_modules" || d.Name() == ".git") {
				return filepath.SkipDir
			}
			return nil
		}
		name := strings.ToLower(d.Name())
		ext := filepath.Ext(name)
		for _, want := range exts {
			if ext == want || name == want {
				count++
				break
			}
		}
		if count >= limit {
			return errEnough
		}
		return nil
	})
	return count
}
