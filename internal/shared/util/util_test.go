package util

import (
	"testing"
)

func TestNormalizePatternPath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Empty", input: "", expected: ""},
		{name: "Dot", input: ".", expected: ""},
		{name: "Trim", input: "  ./foo/bar  ", expected: "foo/bar"},
		{name: "Relative", input: "foo/../bar", expected: "bar"},
		{name: "WindowsSeparators", input: `foo\bar`, expected: "foo/bar"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizePatternPath(tc.input); got != tc.expected {
				t.Fatalf("expected %q, got %q", tc.expected, got)
			}
		})
	}
}

func TestCompileGlobs(t *testing.T) {
	t.Parallel()

	globs, err := CompileGlobs([]string{"**/node_modules/**", "*.tmp"})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	if len(globs) != 2 {
		t.Fatalf("expected 2 globs, got %d", len(globs))
	}

	if _, err := CompileGlobs([]string{"[unclosed"}); err == nil {
		t.Fatal("expected error for malformed pattern")
	}
}

func TestMatchRel(t *testing.T) {
	t.Parallel()

	globs, err := CompileGlobs([]string{"**/node_modules/**", "**/.sfdx/**", "*.tmp"})
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}

	cases := []struct {
		name     string
		rel      string
		expected bool
	}{
		{name: "RootLevelDir", rel: "node_modules/", expected: true},
		{name: "NestedDir", rel: "src/node_modules/", expected: true},
		{name: "FileInsideExcluded", rel: "node_modules/pkg/Hidden.cls", expected: true},
		{name: "HiddenToolDir", rel: ".sfdx/tools/a.cls", expected: true},
		{name: "TempFile", rel: "scratch.tmp", expected: true},
		{name: "RegularSource", rel: "classes/Account.cls", expected: false},
		{name: "SimilarName", rel: "my_node_modules_notes.cls", expected: false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := MatchRel(globs, tc.rel); got != tc.expected {
				t.Fatalf("expected %v for %q, got %v", tc.expected, tc.rel, got)
			}
		})
	}
}
