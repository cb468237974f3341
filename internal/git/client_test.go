package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patchbridge/internal/filechange"
	"patchbridge/internal/vcs"
)

func TestHashObject(t *testing.T) {
	var got vcs.Command
	runner := vcs.RunnerFunc(func(ctx context.Context, cmd vcs.Command) (string, error) {
		got = cmd
		return "ce013625030ba8dba906f756967f9e9ca394464a\n", nil
	})

	id, err := NewClient(runner, "", "/repo", nil).HashObject(context.Background(), "src/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", id)
	assert.Equal(t, "git", got.Name)
	assert.Equal(t, []string{"hash-object", "--", "src/a.txt"}, got.Args)
	assert.Equal(t, "/repo", got.Dir)
}

func TestStatusChanges(t *testing.T) {
	out := "M  a.txt\x00 M b.txt\x00AM c.txt\x00R  new.txt\x00old.txt\x00?? untracked.txt\x00D  d.txt\x00MM e.txt\x00"
	runner := vcs.RunnerFunc(func(ctx context.Context, cmd vcs.Command) (string, error) {
		return out, nil
	})

	changes, err := NewClient(runner, "git", ".", nil).StatusChanges(context.Background())
	require.NoError(t, err)

	want := []struct {
		t     filechange.Type
		paths []string
	}{
		{filechange.Modified, []string{"a.txt"}},
		{filechange.Modified, []string{"b.txt"}},
		{filechange.AddedAndModified, []string{"c.txt"}},
		{filechange.Renamed, []string{"old.txt", "new.txt"}},
		{filechange.Deleted, []string{"d.txt"}},
		{filechange.Modified, []string{"e.txt"}},
	}
	require.Len(t, changes, len(want))
	for i, w := range want {
		assert.Equal(t, w.t, changes[i].Type, "entry %d", i)
		assert.Equal(t, w.paths, changes[i].Paths, "entry %d", i)
		assert.Equal(t, filechange.Git, changes[i].Origin)
	}
}

func TestParseStatusUnknownCode(t *testing.T) {
	_, err := parseStatus("UU conflict.txt\x00")
	assert.Error(t, err)
}

func TestParseStatusMissingRenameSource(t *testing.T) {
	_, err := parseStatus("R  new.txt")
	assert.Error(t, err)
}
