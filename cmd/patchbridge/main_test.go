package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchbridge/internal/archive"
)

const addDiff = `diff --git a/new.txt b/new.txt
new file mode 100644
index 0000000..3b18e51
--- /dev/null
+++ b/new.txt
@@ -0,0 +1 @@
+hello world
`

// execute runs the root command in an isolated HOME and working directory.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	t.Setenv("HOME", t.TempDir())
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })

	var out bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))

	err = rootCmd.Execute()
	return out.String(), err
}

func TestParseFromStdin(t *testing.T) {
	diff := addDiff + `diff --git a/old.txt b/old.txt
deleted file mode 100644
index 3b18e51..0000000
--- a/old.txt
+++ /dev/null
@@ -1 +0,0 @@
-bye
`
	out, err := execute(t, diff, "parse")
	require.NoError(t, err)
	assert.Equal(t, "A\tnew.txt\nD\told.txt\n", out)
}

func TestParseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.diff")
	require.NoError(t, os.WriteFile(path, []byte(addDiff), 0644))

	out, err := execute(t, "", "parse", path)
	require.NoError(t, err)
	assert.Equal(t, "A\tnew.txt\n", out)
}

func TestParseMissingFile(t *testing.T) {
	_, err := execute(t, "", "parse", filepath.Join(t.TempDir(), "missing.diff"))
	assert.Error(t, err)
}

func TestToPerforceDraft(t *testing.T) {
	out, err := execute(t, addDiff, "to-perforce", "--draft", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "--- [!!new.txt!!]\t[!!new.txt#0!!]\n+++ [!!new.txt!!]\t"), out)
	assert.Contains(t, out, "@@ -0,0 +1 @@\n+hello world\n")
}

func TestArchiveShowAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")

	db, err := archive.OpenDB(dir)
	require.NoError(t, err)
	a, err := archive.New(db, archive.Options{})
	require.NoError(t, err)
	id, err := a.Put(archive.Entry{Kind: "changelist", Source: "42", Files: []string{"a.txt"}, Body: []byte(addDiff)})
	require.NoError(t, err)
	require.NoError(t, db.Close())

	out, err := execute(t, "", "--archive-dir", dir, "archive", "show", id)
	require.NoError(t, err)
	assert.Equal(t, addDiff, out)

	out, err = execute(t, "", "--archive-dir", dir, "archive", "list")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "changelist")
	assert.Contains(t, out, "a.txt")
}

func TestArchiveListEmpty(t *testing.T) {
	out, err := execute(t, "", "--archive-dir", filepath.Join(t.TempDir(), "empty"), "archive", "list")
	require.NoError(t, err)
	assert.Equal(t, "No archived diffs\n", out)
}

func TestPrintColoredDiffPlain(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printColoredDiff(&buf, addDiff)
	assert.Equal(t, addDiff, buf.String())

	buf.Reset()
	printColoredDiff(&buf, "")
	assert.Empty(t, buf.String())
}

func TestPrintColoredDiffColours(t *testing.T) {
	prev := color.NoColor
	color.NoColor = false
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	printColoredDiff(&buf, "@@ -1 +1 @@\n-old\n+new\n ctx\n")

	out := buf.String()
	assert.Contains(t, out, "\x1b[36m@@ -1 +1 @@")
	assert.Contains(t, out, "\x1b[31m-old")
	assert.Contains(t, out, "\x1b[32m+new")
	assert.Contains(t, out, " ctx\n")
}
