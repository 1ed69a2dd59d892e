package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initTestRepo はコミット1つ分の履歴を持つGitリポジトリを作成する
func initTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	_, err = repo.CreateRemote(&gitconfig.RemoteConfig{
		Name: "origin",
		URLs: []string{"git@github.com:zvdy/demo.git"},
	})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))

	worktree, err := repo.Worktree()
	require.NoError(t, err)
	_, err = worktree.Add("main.go")
	require.NoError(t, err)

	_, err = worktree.Commit("initial commit\n\nwith a body", &git.CommitOptions{
		Author: &object.Signature{
			Name:  "Test Author",
			Email: "author@example.com",
			When:  time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		},
	})
	require.NoError(t, err)

	return root
}

func TestReadGitInfo(t *testing.T) {
	root := initTestRepo(t)

	info := readGitInfo(root)
	require.NotNil(t, info)

	assert.Equal(t, "github.com/zvdy/demo", info.RemoteURL)
	assert.Equal(t, "master", info.Branch)
	assert.NotEmpty(t, info.CommitHash)
	assert.Equal(t, "initial commit", info.CommitMessage, "コミットメッセージは1行目のみ")
	assert.Equal(t, "Test Author", info.CommitAuthor)
	assert.Equal(t, 2025, info.CommitDate.Year())
}

func TestReadGitInfo_NotARepository(t *testing.T) {
	assert.Nil(t, readGitInfo(t.TempDir()))
}

func TestScanner_Scan_AttachesGitInfo(t *testing.T) {
	root := initTestRepo(t)

	scanner := New(Options{})
	scan, err := scanner.Scan(context.Background(), root)
	require.NoError(t, err)

	require.NotNil(t, scan.Git)
	assert.Equal(t, "github.com/zvdy/demo", scan.Git.RemoteURL)

	// .git ディレクトリは除外され、配下に降りない
	gitDir := findNode(scan, ".git")
	require.NotNil(t, gitDir)
	assert.False(t, gitDir.Include)
	assert.Nil(t, findNode(scan, ".git/HEAD"))
}

func TestNormalizeRemoteURL(t *testing.T) {
	tests := []struct {
		url      string
		expected string
	}{
		{"git@github.com:zvdy/demo.git", "github.com/zvdy/demo"},
		{"https://github.com/zvdy/demo.git", "github.com/zvdy/demo"},
		{"https://gitlab.example.com/group/sub/project", "gitlab.example.com/group/sub/project"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeRemoteURL(tt.url))
		})
	}
}
