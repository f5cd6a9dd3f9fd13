package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oomph"
)

func TestImportFilePath(t *testing.T) {
	tests := []struct {
		name       string
		importPath string
		parentPath string
		expected   string
		expectErr  bool
	}{
		{
			name:       "single component import",
			importPath: "utils",
			parentPath: "/proj/main.oomph",
			expected:   "/proj/utils.oomph",
		},
		{
			name:       "dotted import nests into subdirectories",
			importPath: "lib.collections.list",
			parentPath: "/proj/main.oomph",
			expected:   "/proj/lib/collections/list.oomph",
		},
		{
			name:       "import is resolved relative to the importing file's directory",
			importPath: "sibling",
			parentPath: "/proj/sub/main.oomph",
			expected:   "/proj/sub/sibling.oomph",
		},
		{
			name:       "empty import path is an error",
			importPath: "",
			parentPath: "/proj/main.oomph",
			expectErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := importFilePath(tt.parentPath, tt.importPath)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func writeOomphFile(t *testing.T, path, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
}

func parseFile(t *testing.T, src string) *oomph.File {
	t.Helper()
	toks, err := oomph.NewLexer(src, 4).Tokenize()
	require.NoError(t, err)
	f, err := oomph.NewParser(toks, 4).ParseFile()
	require.NoError(t, err)
	return f
}

func TestResolveImports(t *testing.T) {
	t.Run("acyclic import chain resolves without error", func(t *testing.T) {
		dir := t.TempDir()
		writeOomphFile(t, filepath.Join(dir, "b.oomph"), "func bFunc() -> void:\n    pass\n")

		main := parseFile(t, "import b\nfunc main() -> void:\n    pass\n")
		err := resolveImports(filepath.Join(dir, "main.oomph"), main)
		assert.NoError(t, err)
	})

	t.Run("direct self-import is a cycle", func(t *testing.T) {
		dir := t.TempDir()
		writeOomphFile(t, filepath.Join(dir, "main.oomph"), "import main\nfunc f() -> void:\n    pass\n")

		main := parseFile(t, "import main\nfunc f() -> void:\n    pass\n")
		err := resolveImports(filepath.Join(dir, "main.oomph"), main)
		require.Error(t, err)
		_, ok := err.(*importCycleError)
		assert.True(t, ok)
	})

	t.Run("indirect cycle through a chain of imports is detected", func(t *testing.T) {
		dir := t.TempDir()
		writeOomphFile(t, filepath.Join(dir, "a.oomph"), "import b\nfunc f() -> void:\n    pass\n")
		writeOomphFile(t, filepath.Join(dir, "b.oomph"), "import main\nfunc f() -> void:\n    pass\n")

		main := parseFile(t, "import a\nfunc f() -> void:\n    pass\n")
		err := resolveImports(filepath.Join(dir, "main.oomph"), main)
		require.Error(t, err)
		_, ok := err.(*importCycleError)
		assert.True(t, ok)
	})

	t.Run("a missing import file is a plain error, not a cycle", func(t *testing.T) {
		dir := t.TempDir()
		main := parseFile(t, "import nosuchfile\nfunc f() -> void:\n    pass\n")
		err := resolveImports(filepath.Join(dir, "main.oomph"), main)
		require.Error(t, err)
		_, ok := err.(*importCycleError)
		assert.False(t, ok)
	})
}
