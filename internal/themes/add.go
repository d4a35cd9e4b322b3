package themes

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// CloneFunc fetches a git repository into dest
type CloneFunc func(ctx context.Context, url, dest string) error

// GitClone shallow-clones url with the git binary
func GitClone(ctx context.Context, url, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", url, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// IsGitURL reports whether source should be cloned rather than copied
func IsGitURL(source string) bool {
	for _, prefix := range []string{"https://", "http://", "git@", "git://", "ssh://"} {
		if strings.HasPrefix(source, prefix) {
			return true
		}
	}
	return strings.HasSuffix(source, ".git")
}

// NameFromSource derives the theme name from a URL or directory path
func NameFromSource(source string) string {
	s := strings.TrimRight(source, "/")
	s = strings.TrimSuffix(s, ".git")
	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}
	return filepath.Base(s)
}

// Add installs a theme from a git URL or a local directory and returns its
// name. clone may be nil, which uses GitClone.
func (m *Manager) Add(ctx context.Context, source string, clone CloneFunc) (string, error) {
	name := NameFromSource(source)
	dir, err := m.Dir(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", err, name)
	}
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("%w: %s", ErrExists, name)
	}

	if IsGitURL(source) {
		if clone == nil {
			clone = GitClone
		}
		if err := clone(ctx, source, dir); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
		if err := os.RemoveAll(filepath.Join(dir, ".git")); err != nil {
			m.logger.Warn("could not remove .git directory", zap.String("theme", name), zap.Error(err))
		}
	} else {
		if err := copyLocal(source, dir); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
	}

	if !hasIndex(dir) {
		_ = os.RemoveAll(dir)
		return "", ErrMissingIndex
	}
	m.logger.Info("theme added", zap.String("theme", name), zap.String("source", source))
	return name, nil
}

func copyLocal(src, dst string) error {
	info, err := os.Stat(src)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("source path does not exist: %s", src)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("source must be a directory: %s", src)
	}
	if !hasIndex(src) {
		return ErrMissingIndex
	}
	if err := os.CopyFS(dst, os.DirFS(src)); err != nil {
		return fmt.Errorf("copy theme: %w", err)
	}
	return nil
}
