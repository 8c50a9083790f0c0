package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"pgregory.net/rapid"
)

// Listing partitions visible entries before hidden ones and keeps the
// enumeration order inside each group, whatever that order is.
func TestPartitionProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`\.?[a-z]{1,6}(\.swift)?`), 0, 20, rapid.ID[string],
		).Draw(t, "names")

		entries := make([]FileEntry, len(names))
		for i, n := range names {
			entries[i] = FileEntry{Path: "/w/" + n, Name: n, Hidden: strings.HasPrefix(n, ".")}
		}

		got := Partition(entries)
		if len(got) != len(entries) {
			t.Fatalf("Partition changed length: got %d, want %d", len(got), len(entries))
		}

		var wantVisible, wantHidden []string
		for _, e := range entries {
			if e.Hidden {
				wantHidden = append(wantHidden, e.Name)
			} else {
				wantVisible = append(wantVisible, e.Name)
			}
		}
		want := append(wantVisible, wantHidden...)

		gotNames := make([]string, len(got))
		for i, e := range got {
			gotNames[i] = e.Name
		}
		if len(want) == 0 {
			want = []string{}
		}
		if diff := cmp.Diff(want, gotNames); diff != "" {
			t.Fatalf("Partition order mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPartitionIsNotAlphabetical(t *testing.T) {
	in := []FileEntry{
		{Name: "zeta.swift"}, {Name: ".hidden", Hidden: true}, {Name: "alpha.swift"},
	}
	got := Partition(in)
	want := []string{"zeta.swift", "alpha.swift", ".hidden"}
	for i, e := range got {
		if e.Name != want[i] {
			t.Fatalf("Partition()[%d] = %q, want %q", i, e.Name, want[i])
		}
	}
}

func TestListMarksHiddenAndDirs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.swift", ".b.swift", "c.swift"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("print(1)\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	entries, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("List returned %d entries, want 4", len(entries))
	}
	if last := entries[len(entries)-1]; last.Name != ".b.swift" || !last.Hidden {
		t.Errorf("last entry = %+v, want hidden .b.swift", last)
	}
	for _, e := range entries {
		if e.Path != filepath.Join(dir, e.Name) {
			t.Errorf("entry %q has path %q", e.Name, e.Path)
		}
		if e.Name == "sub" && !e.IsDir {
			t.Error("sub should be marked as a directory")
		}
	}
	if !Contains(entries, filepath.Join(dir, "c.swift")) {
		t.Error("Contains did not find c.swift")
	}
}

func TestListMissingDirectory(t *testing.T) {
	_, err := List(filepath.Join(t.TempDir(), "gone"))
	if err == nil {
		t.Fatal("expected an error listing a missing directory")
	}
}

func TestReadExactContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.swift")
	content := "let x = readLine()!\nprint(x)\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != content {
		t.Errorf("Read = %q, want %q", got, content)
	}
}

func TestReadNotFoundIsClassified(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "deleted.swift"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if !IsNotFound(err) {
		t.Errorf("IsNotFound(%v) = false, want true", err)
	}
}

func TestReadInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bin.dat")
	if err := os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Read(path)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected *DecodeError, got %T: %v", err, err)
	}
	if IsNotFound(err) {
		t.Error("a decode failure must not be classified as not found")
	}
}

func TestReadDirectoryIsOtherError(t *testing.T) {
	_, err := Read(t.TempDir())
	if err == nil {
		t.Fatal("expected an error reading a directory")
	}
	if IsNotFound(err) {
		t.Error("reading a directory must not be classified as not found")
	}
}

func TestCountNonWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"   \t\n", 0},
		{"abc", 3},
		{"a b\tc\nd", 4},
		{"let x = 1\r\n", 6},
		{"e\u0301", 1},          // e + combining acute: one character
		{"\u3000日本\u00a0", 2}, // ideographic and no-break spaces
		{"👍🏽 ok", 3},
	}
	for _, tt := range tests {
		if got := CountNonWhitespace(tt.in); got != tt.want {
			t.Errorf("CountNonWhitespace(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestCountNonWhitespaceIgnoresAddedSpace(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		word := rapid.StringMatching(`[a-zA-Z0-9(){};=]{0,30}`).Draw(t, "word")
		pad := rapid.StringMatching(`[ \t\n]{0,10}`).Draw(t, "pad")
		if CountNonWhitespace(pad+word+pad) != len(word) {
			t.Fatalf("count of %q changed by whitespace padding", word)
		}
	})
}
