package scanner

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	giturls "github.com/whilp/git-urls"
)

// GitInfo はリポジトリのGitメタデータを表します
type GitInfo struct {
	// RemoteURL は正規化されたリモートURL（例: github.com/hoge/fuga）
	RemoteURL string
	// Branch は現在のブランチ名
	Branch string
	// CommitHash は最新コミットのハッシュ
	CommitHash string
	// CommitMessage は最新コミットのメッセージ（1行目のみ）
	CommitMessage string
	// CommitAuthor は最新コミットの作者
	CommitAuthor string
	// CommitDate は最新コミットの日時
	CommitDate time.Time
}

// readGitInfo はリポジトリからGitメタデータを読み取ります
// Gitリポジトリでない場合や読み取りに失敗した場合はnilを返します
// （Git情報はコンテキストの補足であり、欠けてもスキャンは成立する）
func readGitInfo(root string) *GitInfo {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil
	}

	info := &GitInfo{}

	if remote, err := repo.Remote("origin"); err == nil {
		urls := remote.Config().URLs
		if len(urls) > 0 {
			info.RemoteURL = normalizeRemoteURL(urls[0])
		}
	}

	head, err := repo.Head()
	if err != nil {
		return info
	}

	if head.Name().IsBranch() {
		info.Branch = head.Name().Short()
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return info
	}

	info.CommitHash = commit.Hash.String()
	info.CommitMessage = firstLine(commit.Message)
	info.CommitAuthor = commit.Author.Name
	info.CommitDate = commit.Author.When

	return info
}

// normalizeRemoteURL はGit URLを ホスト名/パス の形式に正規化します
// 例: git@github.com:hoge/fuga.git -> github.com/hoge/fuga
func normalizeRemoteURL(gitURL string) string {
	u, err := giturls.Parse(gitURL)
	if err != nil {
		return gitURL
	}

	hostname := u.Hostname()
	if hostname == "" {
		hostname = u.Host
	}

	p := strings.TrimPrefix(u.Path, "/")
	p = strings.TrimSuffix(p, ".git")

	return filepath.ToSlash(filepath.Join(hostname, p))
}

// firstLine は文字列の1行目を返します
func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
