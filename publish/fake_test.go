package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

// fakeTree maps repository paths to file contents for one commit.
type fakeTree map[string][]byte

// fakeStore is an in-memory BranchStore. It models just enough branch
// semantics for the protocol: remote branches hold a single tree, orphan
// creation resets commit counting, and pushes replace the remote tip.
type fakeStore struct {
	wt billy.Filesystem

	base        string
	baseMissing bool

	current         string
	lastCommit      fakeTree // nil while the branch is unborn
	commitsOnBranch int

	remote        map[string]fakeTree
	remoteHistory map[string]int
	local         map[string]bool

	// pushFailures[branch] push attempts fail before succeeding.
	pushFailures map[string]int
	pushes       []string
	fetchCalls   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		wt:            memfs.New(),
		base:          "main",
		current:       "main",
		remote:        map[string]fakeTree{},
		remoteHistory: map[string]int{},
		local:         map[string]bool{"main": true},
		pushFailures:  map[string]int{},
	}
}

// seedRemote installs a branch on the fake remote with the given tree.
func (s *fakeStore) seedRemote(branch string, tree fakeTree) {
	s.remote[branch] = cloneTree(tree)
	s.remoteHistory[branch] = 1
}

func (s *fakeStore) Fetch(ctx context.Context) error {
	s.fetchCalls++
	return nil
}

func (s *fakeStore) RemoteBranchExists(ctx context.Context, branch string) (bool, error) {
	_, ok := s.remote[branch]
	return ok, nil
}

func (s *fakeStore) CheckoutRemoteBranch(ctx context.Context, branch, localName string) error {
	tree, ok := s.remote[branch]
	if !ok {
		return fmt.Errorf("remote branch %q does not exist", branch)
	}
	s.loadTree(tree)
	s.lastCommit = cloneTree(tree)
	s.commitsOnBranch = s.remoteHistory[branch]
	s.current = localName
	s.local[localName] = true
	return nil
}

func (s *fakeStore) CheckoutBranch(ctx context.Context, branch string) error {
	if branch == s.base && s.baseMissing {
		return errors.New("base branch missing")
	}
	if _, remote := s.remote[branch]; !s.local[branch] && !remote && branch != s.base {
		return fmt.Errorf("branch %q does not exist", branch)
	}
	tree := s.remote[branch]
	s.loadTree(tree)
	s.lastCommit = cloneTree(tree)
	s.commitsOnBranch = s.remoteHistory[branch]
	s.current = branch
	return nil
}

func (s *fakeStore) CreateOrphanBranch(ctx context.Context, branch string) error {
	s.clearWorktree()
	s.lastCommit = nil
	s.commitsOnBranch = 0
	s.current = branch
	s.local[branch] = true
	return nil
}

func (s *fakeStore) DeleteLocalBranch(ctx context.Context, branch string) error {
	delete(s.local, branch)
	return nil
}

func (s *fakeStore) DeleteRemoteBranch(ctx context.Context, branch string) error {
	delete(s.remote, branch)
	delete(s.remoteHistory, branch)
	return nil
}

func (s *fakeStore) Worktree() billy.Filesystem {
	return s.wt
}

func (s *fakeStore) HasChanges(ctx context.Context) (bool, error) {
	tree := s.snapshotWorktree()
	if s.lastCommit == nil {
		return len(tree) > 0, nil
	}
	return !reflect.DeepEqual(tree, s.lastCommit), nil
}

func (s *fakeStore) CommitAll(ctx context.Context, message string) (string, error) {
	s.lastCommit = s.snapshotWorktree()
	s.commitsOnBranch++
	return fmt.Sprintf("fake-%s-%d", s.current, s.commitsOnBranch), nil
}

func (s *fakeStore) PushBranch(ctx context.Context, branch string, force bool) error {
	if n := s.pushFailures[branch]; n > 0 {
		s.pushFailures[branch] = n - 1
		return errors.New("simulated push failure")
	}
	s.remote[branch] = cloneTree(s.lastCommit)
	s.remoteHistory[branch] = s.commitsOnBranch
	s.pushes = append(s.pushes, branch)
	return nil
}

func (s *fakeStore) loadTree(tree fakeTree) {
	s.clearWorktree()
	for path, content := range tree {
		if err := writeWorktreeFile(s.wt, path, content); err != nil {
			panic(err)
		}
	}
}

func (s *fakeStore) clearWorktree() {
	entries, err := s.wt.ReadDir(".")
	if err != nil {
		panic(err)
	}
	for _, entry := range entries {
		if err := util.RemoveAll(s.wt, entry.Name()); err != nil {
			panic(err)
		}
	}
}

func (s *fakeStore) snapshotWorktree() fakeTree {
	tree := fakeTree{}
	err := util.Walk(s.wt, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil || path == "." || info.IsDir() {
			return err
		}
		data, readErr := util.ReadFile(s.wt, path)
		if readErr != nil {
			return readErr
		}
		tree[path] = data
		return nil
	})
	if err != nil {
		panic(err)
	}
	return tree
}

func cloneTree(tree fakeTree) fakeTree {
	if tree == nil {
		return fakeTree{}
	}
	out := make(fakeTree, len(tree))
	for path, content := range tree {
		out[path] = append([]byte(nil), content...)
	}
	return out
}
