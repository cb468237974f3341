package diff

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int, edit func(i int) string) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		line := fmt.Sprintf("l%d", i)
		if edit != nil {
			line = edit(i)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func TestEngineDiff(t *testing.T) {
	tests := []struct {
		name     string
		old, new string
		want     string
	}{
		{
			name: "identical",
			old:  "a\nb\n",
			new:  "a\nb\n",
			want: "",
		},
		{
			name: "added file",
			old:  "",
			new:  "a\nb\n",
			want: "@@ -0,0 +1,2 @@\n+a\n+b\n",
		},
		{
			name: "deleted file",
			old:  "a\nb\n",
			new:  "",
			want: "@@ -1,2 +0,0 @@\n-a\n-b\n",
		},
		{
			name: "change in the middle",
			old:  numbered(10, nil),
			new: numbered(10, func(i int) string {
				if i == 5 {
					return "five"
				}
				return fmt.Sprintf("l%d", i)
			}),
			want: "@@ -2,7 +2,7 @@\n l2\n l3\n l4\n-l5\n+five\n l6\n l7\n l8\n",
		},
		{
			name: "missing final newline",
			old:  "a\n",
			new:  "a",
			want: "@@ -1,1 +1,1 @@\n-a\n+a\n\\ No newline at end of file\n",
		},
		{
			name: "insertion",
			old:  "a\nc\n",
			new:  "a\nb\nc\n",
			want: "@@ -1,2 +1,3 @@\n a\n+b\n c\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEngine(3).Diff([]byte(tt.old), []byte(tt.new))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.Format())
		})
	}
}

func TestEngineHunkGrouping(t *testing.T) {
	old := numbered(20, nil)

	t.Run("distant changes split", func(t *testing.T) {
		changed := numbered(20, func(i int) string {
			if i == 2 || i == 19 {
				return "x"
			}
			return fmt.Sprintf("l%d", i)
		})
		result, err := NewEngine(3).Diff([]byte(old), []byte(changed))
		require.NoError(t, err)
		require.Len(t, result.Hunks, 2)

		assert.Equal(t, 1, result.Hunks[0].OldStart)
		assert.Equal(t, 5, result.Hunks[0].OldLines)
		assert.Equal(t, 16, result.Hunks[1].OldStart)
		assert.Equal(t, 5, result.Hunks[1].NewLines)
		assert.Equal(t, 2, result.Stats.Additions)
		assert.Equal(t, 2, result.Stats.Deletions)
		assert.Equal(t, 4, result.Stats.Changes)
	})

	t.Run("close changes merge", func(t *testing.T) {
		changed := numbered(20, func(i int) string {
			if i == 2 || i == 6 {
				return "x"
			}
			return fmt.Sprintf("l%d", i)
		})
		result, err := NewEngine(3).Diff([]byte(old), []byte(changed))
		require.NoError(t, err)
		require.Len(t, result.Hunks, 1)
		assert.Equal(t, 9, result.Hunks[0].OldLines)
	})

	t.Run("zero context", func(t *testing.T) {
		changed := numbered(20, func(i int) string {
			if i == 2 || i == 4 {
				return "x"
			}
			return fmt.Sprintf("l%d", i)
		})
		result, err := NewEngine(0).Diff([]byte(old), []byte(changed))
		require.NoError(t, err)
		require.Len(t, result.Hunks, 2)
		assert.Equal(t, "@@ -2,1 +2,1 @@\n-l2\n+x\n@@ -4,1 +4,1 @@\n-l4\n+x\n", result.Format())
	})
}

func TestUnified(t *testing.T) {
	result, err := NewEngine(3).Diff([]byte("a\n"), []byte("b\n"))
	require.NoError(t, err)
	assert.Equal(t, "--- old\n+++ new\n@@ -1,1 +1,1 @@\n-a\n+b\n", result.Unified("old", "new"))

	same, err := NewEngine(3).Diff([]byte("a\n"), []byte("a\n"))
	require.NoError(t, err)
	assert.Empty(t, same.Unified("old", "new"))
}
