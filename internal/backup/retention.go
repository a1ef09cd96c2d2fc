package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info holds one backup file's metadata for listing and retention
// decisions.
type Info struct {
	Path      string
	Size      int64
	CreatedAt time.Time
	Runs      int // -1 when the header cannot be read
}

// RetentionPolicy decides which backups to keep.
type RetentionPolicy interface {
	Apply(backups []Info) (keep []Info)
}

// CountPolicy keeps the N most recent backups.
type CountPolicy struct {
	MaxCount int
}

// Apply keeps the first MaxCount backups. Input is sorted newest-first.
func (p *CountPolicy) Apply(backups []Info) []Info {
	if len(backups) <= p.MaxCount {
		return backups
	}
	return backups[:p.MaxCount]
}

// AgePolicy keeps backups newer than MaxAge.
type AgePolicy struct {
	MaxAge time.Duration
}

// Apply keeps backups whose CreatedAt is within MaxAge of now.
func (p *AgePolicy) Apply(backups []Info) []Info {
	cutoff := time.Now().Add(-p.MaxAge)
	var keep []Info
	for _, b := range backups {
		if b.CreatedAt.After(cutoff) {
			keep = append(keep, b)
		}
	}
	return keep
}

// SizePolicy keeps newest backups until their total size would pass
// MaxTotalBytes. The newest backup is always kept.
type SizePolicy struct {
	MaxTotalBytes int64
}

// Apply keeps backups newest-first until the size budget is spent.
func (p *SizePolicy) Apply(backups []Info) []Info {
	var keep []Info
	var total int64
	for _, b := range backups {
		if total+b.Size > p.MaxTotalBytes && len(keep) > 0 {
			break
		}
		keep = append(keep, b)
		total += b.Size
	}
	return keep
}

// CompositePolicy keeps a backup when any sub-policy keeps it.
type CompositePolicy struct {
	Policies []RetentionPolicy
}

// Apply returns the union of backups kept by the sub-policies.
func (p *CompositePolicy) Apply(backups []Info) []Info {
	kept := make(map[string]bool)
	for _, policy := range p.Policies {
		for _, b := range policy.Apply(backups) {
			kept[b.Path] = true
		}
	}

	var result []Info
	for _, b := range backups {
		if kept[b.Path] {
			result = append(result, b)
		}
	}
	return result
}

// List scans dir for backup files and returns them sorted newest-first.
// Files with unreadable headers stay listed, with Runs set to -1, so
// retention still covers them.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		info := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
			Runs:      -1,
		}
		if header, err := ReadHeader(info.Path); err == nil {
			info.Runs = header.RunCount
			info.CreatedAt = header.CreatedAt
		}
		backups = append(backups, info)
	}

	// Timestamps are embedded in the filenames, so name order is age order.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention deletes backups in dir that the policy does not keep and
// returns the deleted paths.
func ApplyRetention(dir string, policy RetentionPolicy) (deleted []string, err error) {
	backups, err := List(dir)
	if err != nil {
		return nil, err
	}

	keep := make(map[string]bool)
	for _, b := range policy.Apply(backups) {
		keep[b.Path] = true
	}

	for _, b := range backups {
		if keep[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration parses retention ages like "30d", "2w", or any Go duration
// string such as "720h".
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}

	num, err := strconv.Atoi(s[:len(s)-1])
	if err != nil {
		return 0, fmt.Errorf("invalid duration: %q", s)
	}
	switch s[len(s)-1] {
	case 'd':
		return time.Duration(num) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(num) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unknown duration suffix in %q", s)
	}
}

// ParseSize parses sizes like "500KB", "100MB", or "1GB" into bytes.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"GB", 1024 * 1024 * 1024},
		{"MB", 1024 * 1024},
		{"KB", 1024},
		{"B", 1},
	}
	for _, ss := range suffixes {
		if !strings.HasSuffix(s, ss.suffix) {
			continue
		}
		num, err := strconv.ParseInt(strings.TrimSuffix(s, ss.suffix), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid size: %q", s)
		}
		return num * ss.multiplier, nil
	}
	return 0, fmt.Errorf("invalid size: %q (expected suffix B, KB, MB, or GB)", s)
}
