package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func infoFixture(names ...string) []Info {
	infos := make([]Info, 0, len(names))
	for i, name := range names {
		infos = append(infos, Info{
			Path:      "/backups/" + name,
			Size:      100,
			CreatedAt: time.Now().Add(-time.Duration(i) * 24 * time.Hour),
		})
	}
	return infos
}

func paths(infos []Info) []string {
	out := make([]string, 0, len(infos))
	for _, b := range infos {
		out = append(out, b.Path)
	}
	return out
}

func TestCountPolicy(t *testing.T) {
	backups := infoFixture("c", "b", "a")

	keep := (&CountPolicy{MaxCount: 2}).Apply(backups)
	if len(keep) != 2 || keep[0].Path != "/backups/c" || keep[1].Path != "/backups/b" {
		t.Errorf("CountPolicy kept %v, want newest two", paths(keep))
	}

	keep = (&CountPolicy{MaxCount: 5}).Apply(backups)
	if len(keep) != 3 {
		t.Errorf("CountPolicy over capacity kept %d, want all 3", len(keep))
	}
}

func TestAgePolicy(t *testing.T) {
	backups := infoFixture("today", "yesterday", "ancient")
	backups[2].CreatedAt = time.Now().Add(-30 * 24 * time.Hour)

	keep := (&AgePolicy{MaxAge: 7 * 24 * time.Hour}).Apply(backups)
	if len(keep) != 2 {
		t.Fatalf("AgePolicy kept %d, want 2", len(keep))
	}
	for _, b := range keep {
		if b.Path == "/backups/ancient" {
			t.Error("AgePolicy kept a backup past the cutoff")
		}
	}
}

func TestSizePolicy(t *testing.T) {
	backups := infoFixture("c", "b", "a")

	keep := (&SizePolicy{MaxTotalBytes: 250}).Apply(backups)
	if len(keep) != 2 {
		t.Errorf("SizePolicy kept %d, want 2 within 250 bytes", len(keep))
	}

	// The newest backup survives even when it alone exceeds the budget.
	keep = (&SizePolicy{MaxTotalBytes: 50}).Apply(backups)
	if len(keep) != 1 || keep[0].Path != "/backups/c" {
		t.Errorf("SizePolicy under budget kept %v, want just the newest", paths(keep))
	}
}

func TestCompositePolicy_Union(t *testing.T) {
	backups := infoFixture("c", "b", "a")
	backups[2].CreatedAt = time.Now().Add(-time.Hour)

	// Count keeps {c}, age keeps {c, a}; the union keeps both, in original
	// order.
	policy := &CompositePolicy{Policies: []RetentionPolicy{
		&CountPolicy{MaxCount: 1},
		&AgePolicy{MaxAge: 12 * time.Hour},
	}}
	keep := policy.Apply(backups)
	if len(keep) != 2 || keep[0].Path != "/backups/c" || keep[1].Path != "/backups/a" {
		t.Errorf("CompositePolicy kept %v, want union [c a]", paths(keep))
	}
}

func writeNamedArchive(t *testing.T, dir, stamp string) string {
	t.Helper()
	path := filepath.Join(dir, filePrefix+stamp+fileExt)
	if _, err := WriteArchive(path, sampleArchive()); err != nil {
		t.Fatalf("WriteArchive(%s) error = %v", stamp, err)
	}
	return path
}

func TestList(t *testing.T) {
	dir := t.TempDir()
	writeNamedArchive(t, dir, "20260813-080000")
	writeNamedArchive(t, dir, "20260815-080000")
	writeNamedArchive(t, dir, "20260814-080000")

	// Unrelated files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	backups, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(backups) != 3 {
		t.Fatalf("List() found %d backups, want 3", len(backups))
	}
	for i, want := range []string{"20260815-080000", "20260814-080000", "20260813-080000"} {
		if got := filepath.Base(backups[i].Path); got != filePrefix+want+fileExt {
			t.Errorf("List()[%d] = %s, want stamp %s", i, got, want)
		}
	}
	if backups[0].Runs != 2 {
		t.Errorf("List()[0].Runs = %d, want 2 from header", backups[0].Runs)
	}
}

func TestList_MissingDirectory(t *testing.T) {
	backups, err := List(filepath.Join(t.TempDir(), "nonexistent"))
	if err != nil {
		t.Fatalf("List() on missing dir error = %v", err)
	}
	if backups != nil {
		t.Errorf("List() on missing dir = %v, want nil", backups)
	}
}

func TestApplyRetention(t *testing.T) {
	dir := t.TempDir()
	writeNamedArchive(t, dir, "20260813-080000")
	writeNamedArchive(t, dir, "20260814-080000")
	kept := writeNamedArchive(t, dir, "20260815-080000")

	deleted, err := ApplyRetention(dir, &CountPolicy{MaxCount: 1})
	if err != nil {
		t.Fatalf("ApplyRetention() error = %v", err)
	}
	if len(deleted) != 2 {
		t.Errorf("deleted %d backups, want 2: %v", len(deleted), deleted)
	}
	if _, err := os.Stat(kept); err != nil {
		t.Errorf("newest backup was deleted: %v", err)
	}
	remaining, err := List(dir)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(remaining) != 1 {
		t.Errorf("%d backups remain, want 1", len(remaining))
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"720h", 720 * time.Hour, false},
		{"90m", 90 * time.Minute, false},
		{"", 0, true},
		{"5y", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseDuration(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseDuration(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestParseSize(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"512B", 512, false},
		{"500KB", 500 * 1024, false},
		{"100MB", 100 * 1024 * 1024, false},
		{"1GB", 1024 * 1024 * 1024, false},
		{" 2MB ", 2 * 1024 * 1024, false},
		{"", 0, true},
		{"100", 0, true},
		{"tenMB", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseSize(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseSize(%q) = %d, %v, want %d", tc.in, got, err, tc.want)
		}
	}
}
