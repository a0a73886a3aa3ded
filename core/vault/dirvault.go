package vault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgraph-io/ristretto"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MarkdownExtension is the only document extension a vault tracks.
	MarkdownExtension = ".md"

	defaultNumCounters = 1e5 // counters for the admission policy
	defaultMaxCost     = 1e7 // 10MB of cached content
	defaultBufferItems = 64  // buffer items for async writes
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrTargetExists indicates a rename target is already occupied.
	ErrTargetExists = errors.New("rename target already exists")
)

// =============================================================================
// DirVault
// =============================================================================

// DirVault is a Vault backed by a directory on the local filesystem.
// ReadCached answers from a ristretto cache keyed by path; ReadFresh always
// hits the disk and refreshes the cache entry.
type DirVault struct {
	root  string
	cache *ristretto.Cache
}

// DirVaultConfig configures the read cache of a DirVault.
type DirVaultConfig struct {
	NumCounters int64
	MaxCost     int64
	BufferItems int64
}

// NewDirVault opens a vault rooted at dir.
func NewDirVault(dir string, config *DirVaultConfig) (*DirVault, error) {
	cfg := applyDirVaultDefaults(config)

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, err
	}

	return &DirVault{root: dir, cache: cache}, nil
}

func applyDirVaultDefaults(config *DirVaultConfig) *DirVaultConfig {
	cfg := &DirVaultConfig{
		NumCounters: defaultNumCounters,
		MaxCost:     defaultMaxCost,
		BufferItems: defaultBufferItems,
	}
	if config == nil {
		return cfg
	}
	if config.NumCounters > 0 {
		cfg.NumCounters = config.NumCounters
	}
	if config.MaxCost > 0 {
		cfg.MaxCost = config.MaxCost
	}
	if config.BufferItems > 0 {
		cfg.BufferItems = config.BufferItems
	}
	return cfg
}

// Root returns the vault root directory.
func (v *DirVault) Root() string {
	return v.root
}

// Close releases the read cache.
func (v *DirVault) Close() {
	v.cache.Close()
}

// =============================================================================
// Reads
// =============================================================================

// ReadCached returns document content, answering from the read cache when a
// prior read populated it.
func (v *DirVault) ReadCached(ctx context.Context, path string) (string, error) {
	if value, found := v.cache.Get(path); found {
		if content, ok := value.(string); ok {
			return content, nil
		}
	}
	return v.ReadFresh(ctx, path)
}

// ReadFresh reads document content from disk and refreshes the cache entry.
func (v *DirVault) ReadFresh(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	data, err := os.ReadFile(v.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", err
	}

	content := string(data)
	v.cache.Set(path, content, int64(len(content)))
	return content, nil
}

// =============================================================================
// Existence / Listing
// =============================================================================

// Exists reports whether a document exists on disk.
func (v *DirVault) Exists(path string) bool {
	info, err := os.Stat(v.abs(path))
	return err == nil && !info.IsDir()
}

// ListAll walks the vault and returns every markdown document path,
// vault-relative with forward slashes.
func (v *DirVault) ListAll() ([]string, error) {
	var paths []string

	err := filepath.WalkDir(v.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip unreadable entries
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != v.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), MarkdownExtension) {
			return nil
		}
		rel, err := filepath.Rel(v.root, path)
		if err != nil {
			return nil
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return paths, nil
}

// =============================================================================
// Rename
// =============================================================================

// Rename atomically moves a document, refusing to clobber an existing target.
func (v *DirVault) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if !v.Exists(oldPath) {
		return fmt.Errorf("%w: %s", ErrNotFound, oldPath)
	}
	if !strings.EqualFold(oldPath, newPath) && v.Exists(newPath) {
		return fmt.Errorf("%w: %s", ErrTargetExists, newPath)
	}

	target := v.abs(newPath)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(v.abs(oldPath), target); err != nil {
		return err
	}

	if value, found := v.cache.Get(oldPath); found {
		if content, ok := value.(string); ok {
			v.cache.Set(newPath, content, int64(len(content)))
		}
	}
	v.cache.Del(oldPath)
	return nil
}

// =============================================================================
// Frontmatter
// =============================================================================

// Frontmatter returns the parsed frontmatter mapping of a document, or nil
// when the document carries none.
func (v *DirVault) Frontmatter(ctx context.Context, path string) (map[string]any, error) {
	content, err := v.ReadCached(ctx, path)
	if err != nil {
		return nil, err
	}

	metadata, _, err := ParseFrontmatter(content)
	if err != nil {
		return nil, err
	}
	return metadata, nil
}

func (v *DirVault) abs(path string) string {
	return filepath.Join(v.root, filepath.FromSlash(path))
}
