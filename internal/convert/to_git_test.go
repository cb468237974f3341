package convert

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"

	gogitdiff "github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"patchbridge/internal/errors"
	"patchbridge/internal/filechange"
	"patchbridge/internal/p4diff"
	"patchbridge/internal/perforce"
	"patchbridge/internal/testutil"
)

const helloID = "ce013625030ba8dba906f756967f9e9ca394464a"

var testPaths = perforce.PathMapper{Root: "/ws", Depth: 4}

func newPerforceToGit(hasher *testutil.MockHasher) *PerforceToGit {
	return NewPerforceToGit(Deps{Hasher: hasher, Paths: testPaths})
}

func convertToGit(t *testing.T, hasher *testutil.MockHasher, input string) *Conversion {
	t.Helper()
	result, err := newPerforceToGit(hasher).Convert(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func TestPerforceToGitDeletion(t *testing.T) {
	hasher := &testutil.MockHasher{}
	hasher.On("HashObject", mock.Anything, "file.txt").Return(helloID, nil).Once()

	input := "--- //depot/proj/file.txt#3\t2024/01/01 00:00:00\n" +
		"+++ /ws/file.txt\t2024/01/02 00:00:00\n" +
		"@@ -1,5 +0,0 @@\n-a\n-b\n-c\n-d\n-e\n"
	result := convertToGit(t, hasher, input)

	assert.Equal(t, "diff --git a/file.txt b/file.txt\n"+
		"deleted file mode 100644\n"+
		"index "+helloID+".."+plumbing.ZeroHash.String()+"\n"+
		"--- a/file.txt\n"+
		"+++ /dev/null\n"+
		"@@ -1,5 +0,0 @@\n-a\n-b\n-c\n-d\n-e\n", result.Text)

	require.Len(t, result.Changes, 1)
	assert.Equal(t, filechange.Deleted, result.Changes[0].Type)
	assert.Equal(t, []string{"file.txt"}, result.Changes[0].Paths)
	assert.Equal(t, 3, result.Changes[0].Version)
	assert.Equal(t, filechange.Perforce, result.Changes[0].Origin)
	hasher.AssertExpectations(t)
}

func TestPerforceToGitDeletionHashFallback(t *testing.T) {
	hasher := &testutil.MockHasher{}
	hasher.On("HashObject", mock.Anything, "file.txt").Return("", stderrors.New("no such file"))

	input := "--- //depot/proj/file.txt#3\n+++ /ws/file.txt\n@@ -1,2 +0,0 @@\n-a\n-b\n\\ No newline at end of file\n"
	result := convertToGit(t, hasher, input)

	want := plumbing.ComputeHash(plumbing.BlobObject, []byte("a\nb")).String()
	assert.Contains(t, result.Text, "index "+want+"..")
	assert.True(t, strings.HasSuffix(result.Text, "-b\n\\ No newline at end of file\n"))
}

func TestPerforceToGitDeletionHashFailure(t *testing.T) {
	hasher := &testutil.MockHasher{}
	hasher.On("HashObject", mock.Anything, "file.txt").Return("", stderrors.New("no such file"))

	// The hunk does not start at line 1, so the content cannot be rebuilt.
	input := "--- //depot/proj/file.txt#3\n+++ /ws/file.txt\n@@ -4,2 +0,0 @@\n-a\n-b\n"
	_, err := newPerforceToGit(hasher).Convert(context.Background(), strings.NewReader(input))
	assert.ErrorContains(t, err, "no such file")
}

func TestPerforceToGitBeforeMarkers(t *testing.T) {
	hunk := "@@ -1,2 +1,2 @@\n keep\n-old\n+new\n"
	want := "diff --git a/a.txt b/a.txt\n--- a/a.txt\n+++ b/a.txt\n" + hunk

	tests := []struct {
		name  string
		input string
	}{
		{
			name:  "revision suffix",
			input: "--- //depot/proj/a.txt#5\t2024/01/01 00:00:00\n+++ /ws/a.txt\t2024/01/02 00:00:00\n" + hunk,
		},
		{
			name:  "path pair",
			input: "--- //depot/proj/a.txt\t//depot/proj/a.txt#5\n+++ //depot/proj/a.txt\t2024/03/05 14:07:09\n" + hunk,
		},
		{
			name: "describe header",
			input: "Change 42 by bob@ws on 2024/03/05 14:07:09\n\n\tFix things\n\n" +
				"Affected files ...\n\n... //depot/proj/a.txt#5 edit\n\nDifferences ...\n\n" +
				"==== //depot/proj/a.txt#5 (text) ====\n\n" + hunk + "\n",
		},
		{
			name:  "header then plain before",
			input: "==== //depot/proj/a.txt#5 (text) ====\n--- //depot/proj/a.txt\t2024/01/01 00:00:00\n+++ /ws/a.txt\n" + hunk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hasher := &testutil.MockHasher{}
			result := convertToGit(t, hasher, tt.input)
			assert.Equal(t, want, result.Text)
			assert.NotContains(t, result.Text, "index ")
			require.Len(t, result.Changes, 1)
			assert.Equal(t, filechange.Modified, result.Changes[0].Type)
			assert.Equal(t, 5, result.Changes[0].Version)
			hasher.AssertNotCalled(t, "HashObject", mock.Anything, mock.Anything)
		})
	}
}

func TestPerforceToGitPureMove(t *testing.T) {
	result := convertToGit(t, &testutil.MockHasher{}, "==== //depot/proj/old.txt#3 ==MV== //depot/proj/new.txt ====\n")

	assert.Equal(t, "diff --git a/old.txt b/new.txt\nrename from old.txt\nrename to new.txt\n", result.Text)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, filechange.Renamed, result.Changes[0].Type)
	assert.Equal(t, []string{"old.txt", "new.txt"}, result.Changes[0].Paths)
	assert.Equal(t, 3, result.Changes[0].Version)
}

func TestPerforceToGitRenameIsNeverRenamedAndModified(t *testing.T) {
	input := "Moved from: //depot/proj/from.txt\n" +
		"Moved to: //depot/proj/to.txt\n" +
		"--- //depot/proj/from.txt\t//depot/proj/from.txt#7\n" +
		"+++ //depot/proj/to.txt\t2024/03/05 14:07:09\n" +
		"@@ -1,2 +1,2 @@\n one\n-two\n+2\n"
	result := convertToGit(t, &testutil.MockHasher{}, input)

	assert.Equal(t, "diff --git a/from.txt b/to.txt\n"+
		"rename from from.txt\n"+
		"rename to to.txt\n"+
		"--- a/from.txt\n"+
		"+++ b/to.txt\n"+
		"@@ -1,2 +1,2 @@\n one\n-two\n+2\n", result.Text)
	assert.NotContains(t, result.Text, "index ")
	require.Len(t, result.Changes, 1)
	assert.Equal(t, filechange.Renamed, result.Changes[0].Type)
}

func TestPerforceToGitFileWithoutHunks(t *testing.T) {
	input := "--- //depot/proj/same.txt#2\n+++ /ws/same.txt\n" +
		"--- //depot/proj/old.txt#4\n+++ /ws/new.txt\n"
	result := convertToGit(t, &testutil.MockHasher{}, input)

	assert.Equal(t, "diff --git a/old.txt b/new.txt\nrename from old.txt\nrename to new.txt\n", result.Text)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, 4, result.Changes[0].Version)
}

func TestPerforceToGitNilAndEmpty(t *testing.T) {
	conv := newPerforceToGit(&testutil.MockHasher{})

	result, err := conv.Convert(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, result)

	result, err = conv.Convert(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Empty(t, result.Text)
	assert.NotNil(t, result.Changes)
}

func TestPerforceToGitErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  errors.Kind
		path  string
	}{
		{"before without after", "--- //depot/proj/y.txt#3\n@@ -1 +1 @@\n-a\n+b\n", errors.KindGrammarMismatch, "y.txt"},
		{"after without before", "+++ /ws/a.txt\n@@ -1 +1 @@\n-a\n+b\n", errors.KindGrammarMismatch, "a.txt"},
		{"hunk without file", "@@ -1 +1 @@\n-a\n+b\n", errors.KindGrammarMismatch, ""},
		{"path above depot depth", "--- //depot/a.txt#1\n+++ //depot/a.txt\n@@ -1 +1 @@\n-a\n+b\n", errors.KindUnresolvedIdentity, "//depot/a.txt"},
		{"local path outside root", "--- //depot/proj/a.txt#1\n+++ /elsewhere/a.txt\n@@ -1 +1 @@\n-a\n+b\n", errors.KindUnresolvedIdentity, "/elsewhere/a.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := newPerforceToGit(&testutil.MockHasher{}).Convert(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, &errors.Error{Kind: tt.kind})

			var pbErr *errors.Error
			require.True(t, stderrors.As(err, &pbErr))
			assert.Equal(t, tt.path, pbErr.Path)
			assert.NotEmpty(t, pbErr.Fragment)
		})
	}
}

// A git diff taken to perforce and back must still be a valid git patch
// describing the same files.
func TestRoundTrip(t *testing.T) {
	p4 := mixedResolver()
	toPerforce, err := newGitToPerforce(p4).Convert(context.Background(), strings.NewReader(mixedDiff))
	require.NoError(t, err)

	hasher := &testutil.MockHasher{}
	hasher.On("HashObject", mock.Anything, "gone.txt").Return("", stderrors.New("deleted"))
	toGit := convertToGit(t, hasher, toPerforce.Text)

	files, _, err := gogitdiff.Parse(strings.NewReader(toGit.Text))
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, "a.txt", files[0].NewName)
	assert.False(t, files[0].IsNew || files[0].IsDelete || files[0].IsRename)
	require.Len(t, files[0].TextFragments, 1)
	assert.EqualValues(t, 1, files[0].TextFragments[0].LinesAdded)

	assert.True(t, files[1].IsDelete)
	assert.Equal(t, "gone.txt", files[1].OldName)
	assert.Equal(t, plumbing.ComputeHash(plumbing.BlobObject, []byte("bye\n")).String(), files[1].OldOIDPrefix)

	assert.True(t, files[2].IsRename)
	assert.Equal(t, "from.txt", files[2].OldName)
	assert.Equal(t, "to.txt", files[2].NewName)

	require.Len(t, toGit.Changes, len(toPerforce.Changes))
	for i := range toGit.Changes {
		assert.True(t, toPerforce.Changes[i].EqualNarrowed(toGit.Changes[i]),
			"%s vs %s", toPerforce.Changes[i], toGit.Changes[i])
	}
	assert.False(t, toPerforce.Changes[2].Equal(toGit.Changes[2]))
}

func TestDeletedContent(t *testing.T) {
	tokens := func(lines ...string) []p4diff.Token {
		out := make([]p4diff.Token, len(lines))
		for i, l := range lines {
			out[i] = p4diff.Token{Line: l}
		}
		return out
	}

	hunk := p4diff.Token{Line: "@@ -1,2 +0,0 @@", Kind: p4diff.HunkHeader, OldLines: 2}

	content, ok := deletedContent(hunk, tokens("-a", "-b"))
	require.True(t, ok)
	assert.Equal(t, "a\nb\n", string(content))

	content, ok = deletedContent(hunk, tokens("-a", "-b", `\ No newline at end of file`))
	require.True(t, ok)
	assert.Equal(t, "a\nb", string(content))

	_, ok = deletedContent(hunk, tokens("-a"))
	assert.False(t, ok)

	_, ok = deletedContent(hunk, tokens("-a", " b"))
	assert.False(t, ok)

	_, ok = deletedContent(p4diff.Token{Line: "@@ -3,2 +0,0 @@", Kind: p4diff.HunkHeader, OldLines: 2}, tokens("-a", "-b"))
	assert.False(t, ok)
}
