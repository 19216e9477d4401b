package telegramutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
)

// CleanupPolicy bounds the size of the download cache. Zero values disable a limit.
type CleanupPolicy struct {
	MaxAge        time.Duration
	MaxFiles      int
	MaxTotalBytes int64
}

func (p CleanupPolicy) enabled() bool {
	return p.MaxAge > 0 || p.MaxFiles > 0 || p.MaxTotalBytes > 0
}

type cacheEntry struct {
	path    string
	modTime time.Time
	size    int64
}

// PrepareCacheDir makes root and root/child private to the current user and
// prunes child according to policy. It returns the absolute child path.
func PrepareCacheDir(root, child string, policy CleanupPolicy) (string, error) {
	if err := EnsureSecureCacheDir(root); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(strings.TrimSpace(root))
	if err != nil {
		return "", err
	}
	dir := abs
	if child = strings.TrimSpace(child); child != "" {
		dir = filepath.Join(abs, child)
		if err := EnsureSecureChildDir(abs, dir); err != nil {
			return "", err
		}
	}
	if _, err := CleanupFileCacheDir(dir, policy, time.Now()); err != nil {
		return dir, fmt.Errorf("cleanup %s: %w", dir, err)
	}
	return dir, nil
}

func EnsureSecureCacheDir(dir string) error {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return fmt.Errorf("empty dir")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return err
	}
	return checkPrivateDir(abs)
}

// EnsureSecureChildDir creates childDir, which must live directly under parentDir.
func EnsureSecureChildDir(parentDir, childDir string) error {
	parentDir = filepath.Clean(strings.TrimSpace(parentDir))
	childDir = filepath.Clean(strings.TrimSpace(childDir))
	if parentDir == "." || childDir == "." {
		return fmt.Errorf("missing dir")
	}
	if filepath.Dir(childDir) != parentDir {
		return fmt.Errorf("refusing child dir outside parent: %s", childDir)
	}
	if err := os.Mkdir(childDir, 0o700); err != nil && !os.IsExist(err) {
		return err
	}
	return checkPrivateDir(childDir)
}

func checkPrivateDir(dir string) error {
	fi, err := os.Lstat(dir)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("refusing symlink path: %s", dir)
	}
	if !fi.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok || st == nil {
		return fmt.Errorf("unsupported stat for: %s", dir)
	}
	if uid := uint32(os.Getuid()); st.Uid != uid {
		return fmt.Errorf("cache dir not owned by current user (uid=%d, owner=%d): %s", uid, st.Uid, dir)
	}
	if perm := fi.Mode().Perm(); perm != 0o700 {
		if err := os.Chmod(dir, 0o700); err != nil {
			return fmt.Errorf("cache dir has insecure perms (%#o) and chmod failed: %w", perm, err)
		}
	}
	return nil
}

// CleanupFileCacheDir removes expired files, then the oldest files until the
// count and byte limits hold. It returns the number of files removed.
func CleanupFileCacheDir(dir string, policy CleanupPolicy, now time.Time) (int, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return 0, fmt.Errorf("missing dir")
	}
	if !policy.enabled() {
		return 0, nil
	}

	removed := 0
	var kept []cacheEntry
	var total int64
	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		if policy.MaxAge > 0 && now.Sub(info.ModTime()) > policy.MaxAge {
			if os.Remove(path) == nil {
				removed++
			}
			return nil
		}
		kept = append(kept, cacheEntry{path: path, modTime: info.ModTime(), size: info.Size()})
		total += info.Size()
		return nil
	})
	if walkErr != nil && !os.IsNotExist(walkErr) {
		return removed, walkErr
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
	for len(kept) > 0 {
		overFiles := policy.MaxFiles > 0 && len(kept) > policy.MaxFiles
		overBytes := policy.MaxTotalBytes > 0 && total > policy.MaxTotalBytes
		if !overFiles && !overBytes {
			break
		}
		oldest := kept[0]
		kept = kept[1:]
		total -= oldest.size
		if os.Remove(oldest.path) == nil {
			removed++
		}
	}
	return removed, nil
}
