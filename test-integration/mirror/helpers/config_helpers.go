package helpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/onsi/gomega"
)

// StaticRepository is one entry of a static source
type StaticRepository struct {
	Group string
	Name  string
	URL   string
}

// ConfigOptions holds the variable parts of a test configuration
type ConfigOptions struct {
	// MirrorDir is the mirror root
	MirrorDir string
	// Pause is the pause between passes, "1s" when empty
	Pause string
	// Backend is the git backend, "command" when empty
	Backend string
	// DryRun skips updates
	DryRun bool
	// Filter is the text of the source filter file
	Filter string
	// Repositories are the static source entries
	Repositories []StaticRepository
}

// WriteConfigYAML writes a configuration with one static source and its
// filter file into dir and returns the configuration path
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	pause := opts.Pause
	if pause == "" {
		pause = "1s"
	}
	backend := opts.Backend
	if backend == "" {
		backend = "command"
	}

	var repos strings.Builder
	for _, repo := range opts.Repositories {
		fmt.Fprintf(&repos, "        - {group: %s, name: %s, url: %q}\n", repo.Group, repo.Name, repo.URL)
	}

	configContent := fmt.Sprintf(`directory: %s
pauseDuration: %q
minimumPause: "1s"
dryRun: %t
git:
  backend: %s
sources:
  - name: local
    type: static
    static:
      repositories:
%s    filter: local.filter
`, opts.MirrorDir, pause, opts.DryRun, backend, repos.String())

	err := os.WriteFile(filepath.Join(dir, "local.filter"), []byte(opts.Filter), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())

	configPath := filepath.Join(dir, "config.yaml")
	err = os.WriteFile(configPath, []byte(configContent), 0600)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return configPath
}
