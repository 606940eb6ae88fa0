package contextcollector

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/doeshing/aish/internal/domain"
	"github.com/doeshing/aish/internal/ports"
)

// packageManagers are probed in order; the first one on PATH wins.
var packageManagers = map[string][]string{
	"darwin":  {"brew", "port"},
	"linux":   {"apt-get", "dnf", "yum", "pacman", "zypper", "apk", "brew"},
	"windows": {"winget", "choco", "scoop"},
}

// BasicCollector implements ContextCollector with filesystem + tool detection.
type BasicCollector struct {
	toolsToCheck []string
	lookPath     func(string) (string, error)
	goos         string
}

func NewBasicCollector() *BasicCollector {
	return &BasicCollector{
		toolsToCheck: []string{"docker", "kubectl", "git", "npm", "yarn", "pnpm", "python", "python3", "go", "node", "cargo", "make", "systemctl", "curl"},
		lookPath:     exec.LookPath,
		goos:         runtime.GOOS,
	}
}

// Collect gathers context data. Probes that fail leave their field empty.
func (c *BasicCollector) Collect(ctx context.Context, cfg domain.Config) (domain.ContextSnapshot, error) {
	wd, _ := os.Getwd()
	snapshot := domain.ContextSnapshot{
		WorkingDir:     wd,
		Shell:          detectShell(cfg),
		OS:             c.goos,
		Arch:           runtime.GOARCH,
		User:           currentUser(),
		PackageManager: c.detectPackageManager(),
		AvailableTools: c.detectTools(),
	}

	if cfg.Context.IncludeFiles {
		snapshot.Files = listFiles(wd, cfg.GetMaxContextFiles())
	}
	if cfg.IsGitContextEnabled() {
		snapshot.Git = collectGitInfo(ctx, wd)
	}
	if cfg.Context.IncludeEnv {
		snapshot.EnvironmentVars = map[string]string{"PATH": os.Getenv("PATH")}
		for _, key := range []string{"KUBECONFIG", "VIRTUAL_ENV", "GOPATH"} {
			if v := os.Getenv(key); v != "" {
				snapshot.EnvironmentVars[key] = v
			}
		}
	}
	return snapshot, nil
}

func (c *BasicCollector) detectTools() []string {
	var available []string
	for _, tool := range c.toolsToCheck {
		if _, err := c.lookPath(tool); err == nil {
			available = append(available, tool)
		}
	}
	sort.Strings(available)
	return available
}

func (c *BasicCollector) detectPackageManager() string {
	for _, name := range packageManagers[c.goos] {
		if _, err := c.lookPath(name); err == nil {
			return name
		}
	}
	return ""
}

func listFiles(dir string, limit int) []domain.FileInfo {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []domain.FileInfo
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if len(files) >= limit {
			break
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, domain.FileInfo{
			Path: entry.Name(),
			Size: info.Size(),
			Type: toFileType(info),
		})
	}
	return files
}

func toFileType(info os.FileInfo) domain.FileType {
	switch {
	case info.Mode().IsDir():
		return domain.FileTypeDir
	case info.Mode()&os.ModeSymlink != 0:
		return domain.FileTypeSymlink
	case info.Mode().IsRegular():
		return domain.FileTypeFile
	default:
		return domain.FileTypeUnknown
	}
}

func detectShell(cfg domain.Config) string {
	if shell := cfg.GetExecutionShell(); shell != "" {
		return filepath.Base(shell)
	}
	if shell := os.Getenv("SHELL"); shell != "" {
		return filepath.Base(shell)
	}
	if runtime.GOOS == "windows" {
		return "cmd"
	}
	return "sh"
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}

// collectGitInfo runs the branch and status probes side by side.
func collectGitInfo(ctx context.Context, dir string) *domain.GitStatus {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		return nil
	}
	var branch, statusShort string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		branch = runCmd(gctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
		return nil
	})
	g.Go(func() error {
		statusShort = runCmd(gctx, dir, "git", "status", "--short")
		return nil
	})
	_ = g.Wait()

	modified := 0
	untracked := 0
	for _, line := range strings.Split(statusShort, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "??") {
			untracked++
		} else {
			modified++
		}
	}
	return &domain.GitStatus{
		Branch:         strings.TrimSpace(branch),
		ModifiedCount:  modified,
		UntrackedCount: untracked,
		Summary:        strings.TrimSpace(statusShort),
	}
}

func runCmd(ctx context.Context, dir string, name string, args ...string) string {
	cctx, cancel := context.WithTimeout(ctx, domain.DefaultProbeTimeout)
	defer cancel()
	cmd := exec.CommandContext(cctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

var _ ports.ContextCollector = (*BasicCollector)(nil)
