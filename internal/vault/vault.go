// Package vault stores markdown notes in a directory tree.
//
// All paths crossing the package boundary are vault-relative and
// slash-separated. Hidden directories (".git", ".obsidian") are never listed.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrInvalidPath = errors.New("invalid path")
	ErrNotFound    = errors.New("not found")
	ErrExists      = errors.New("already exists")
	ErrConflict    = errors.New("conflict: file changed")
	ErrIsDir       = errors.New("path is a directory")
	ErrNotDir      = errors.New("path is not a directory")
)

// Entry kinds
const (
	KindFolder = "folder"
	KindFile   = "file"
)

type Entry struct {
	Path  string    `json:"path"`
	Name  string    `json:"name"`
	Kind  string    `json:"kind"`
	Size  int64     `json:"size,omitempty"`
	MTime time.Time `json:"mtime"`
}

type FileInfo struct {
	Path  string    `json:"path"`
	Name  string    `json:"name"`
	Size  int64     `json:"size"`
	MTime time.Time `json:"mtime"`
}

type ReadResult struct {
	Path    string    `json:"path"`
	Content string    `json:"content"`
	Size    int64     `json:"size"`
	MTime   time.Time `json:"mtime"`
	Hash    string    `json:"sha256"`
}

// WriteRequest carries new content. When IfMatch is set the write only
// succeeds if the file's current sha256 equals it.
type WriteRequest struct {
	Content string `json:"content"`
	IfMatch string `json:"ifMatch,omitempty"`
}

type WriteResult struct {
	Path  string    `json:"path"`
	Size  int64     `json:"size"`
	MTime time.Time `json:"mtime"`
	Hash  string    `json:"sha256"`
}

// Vault is a directory of markdown notes
type Vault struct {
	root string
	// mu orders conditional writes made through this Vault
	mu sync.Mutex
}

// New creates root if needed and returns a Vault over it
func New(root string) (*Vault, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create vault: %w", err)
	}
	return &Vault{root: abs}, nil
}

// Root returns the absolute vault directory
func (v *Vault) Root() string { return v.root }

// resolve maps a vault-relative path to an absolute one inside the vault
func (v *Vault) resolve(rel string) (string, error) {
	if strings.TrimSpace(rel) == "" {
		return "", fmt.Errorf("%w: path required", ErrInvalidPath)
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrInvalidPath, rel)
	}

	abs := filepath.Join(v.root, clean)
	if !strings.HasPrefix(abs, v.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path escapes vault", ErrInvalidPath)
	}
	return abs, nil
}

// Rel converts an absolute path inside the vault to its vault-relative form
func (v *Vault) Rel(abs string) (string, bool) {
	rel, err := filepath.Rel(v.root, abs)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// IsMarkdown reports whether name has a .md extension
func IsMarkdown(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".md")
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	return err
}

// ListMarkdown returns every markdown file, most recently modified first
func (v *Vault) ListMarkdown(ctx context.Context) ([]FileInfo, error) {
	out := []FileInfo{}

	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != v.root && isHidden(d.Name()) {
				return fs.SkipDir
			}
			return nil
		}
		if !IsMarkdown(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := v.Rel(p)
		out = append(out, FileInfo{Path: rel, Name: d.Name(), Size: info.Size(), MTime: info.ModTime()})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].MTime.After(out[j].MTime) })
	return out, nil
}

// ListEntries returns folders and markdown files, folders first then by path
func (v *Vault) ListEntries(ctx context.Context) ([]Entry, error) {
	out := []Entry{}

	err := filepath.WalkDir(v.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if p == v.root {
			return nil
		}
		if d.IsDir() && isHidden(d.Name()) {
			return fs.SkipDir
		}

		kind := KindFile
		if d.IsDir() {
			kind = KindFolder
		} else if !IsMarkdown(d.Name()) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, _ := v.Rel(p)
		e := Entry{Path: rel, Name: d.Name(), Kind: kind, MTime: info.ModTime()}
		if kind == KindFile {
			e.Size = info.Size()
		}
		out = append(out, e)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindFolder
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

func (v *Vault) ReadFile(ctx context.Context, rel string) (*ReadResult, error) {
	abs, err := v.resolve(rel)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return nil, notFound(err)
	}
	if stat.IsDir() {
		return nil, ErrIsDir
	}

	b, err := os.ReadFile(abs)
	if err != nil {
		return nil, notFound(err)
	}

	return &ReadResult{
		Path:    filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel))),
		Content: string(b),
		Size:    int64(len(b)),
		MTime:   stat.ModTime(),
		Hash:    sha256Hex(b),
	}, nil
}

// CreateFile writes a new file and fails with ErrExists if one is already
// there. The file is linked into place, so an existing file is never replaced.
func (v *Vault) CreateFile(ctx context.Context, rel, content string) (*WriteResult, error) {
	abs, err := v.resolve(rel)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err == nil {
		return nil, ErrExists
	}
	return v.write(abs, []byte(content), func(tmpName string) error {
		if err := os.Link(tmpName, abs); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return ErrExists
			}
			return err
		}
		return os.Remove(tmpName)
	})
}

// WriteFile atomically replaces the file content, honouring req.IfMatch
func (v *Vault) WriteFile(ctx context.Context, rel string, req WriteRequest) (*WriteResult, error) {
	abs, err := v.resolve(rel)
	if err != nil {
		return nil, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if req.IfMatch != "" {
		cur, err := os.ReadFile(abs)
		switch {
		case err == nil:
			if sha256Hex(cur) != req.IfMatch {
				return nil, ErrConflict
			}
		case errors.Is(err, fs.ErrNotExist):
			// file was removed since it was read
			return nil, ErrConflict
		default:
			return nil, err
		}
	}

	return v.write(abs, []byte(req.Content), func(tmpName string) error {
		return os.Rename(tmpName, abs)
	})
}

// write stages content in a temp file in the target directory and hands it
// to place, which moves it to abs
func (v *Vault) write(abs string, content []byte, place func(tmpName string) error) (*WriteResult, error) {
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(abs)+".*.tmp")
	if err != nil {
		return nil, err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return nil, err
	}
	if err := place(tmpName); err != nil {
		os.Remove(tmpName)
		return nil, err
	}

	stat, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	out, _ := v.Rel(abs)
	return &WriteResult{Path: out, Size: stat.Size(), MTime: stat.ModTime(), Hash: sha256Hex(content)}, nil
}

// CreateFolder creates rel and any missing parents
func (v *Vault) CreateFolder(ctx context.Context, rel string) error {
	abs, err := v.resolve(rel)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err == nil {
		return ErrExists
	}
	return os.MkdirAll(abs, 0o755)
}

func (v *Vault) DeleteFile(ctx context.Context, rel string) error {
	abs, err := v.resolve(rel)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return notFound(err)
	}
	if info.IsDir() {
		return ErrIsDir
	}
	return os.Remove(abs)
}

// DeleteFolder removes a folder and everything in it
func (v *Vault) DeleteFolder(ctx context.Context, rel string) error {
	abs, err := v.resolve(rel)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return notFound(err)
	}
	if !info.IsDir() {
		return ErrNotDir
	}
	return os.RemoveAll(abs)
}

// Rename moves a file or folder. The destination must not exist.
func (v *Vault) Rename(ctx context.Context, oldRel, newRel string) error {
	oldAbs, err := v.resolve(oldRel)
	if err != nil {
		return err
	}
	newAbs, err := v.resolve(newRel)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldAbs); err != nil {
		return notFound(err)
	}
	if _, err := os.Stat(newAbs); err == nil {
		return ErrExists
	}
	if strings.HasPrefix(newAbs, oldAbs+string(filepath.Separator)) {
		return fmt.Errorf("%w: cannot move a folder into itself", ErrInvalidPath)
	}

	if err := os.MkdirAll(filepath.Dir(newAbs), 0o755); err != nil {
		return err
	}
	return os.Rename(oldAbs, newAbs)
}
