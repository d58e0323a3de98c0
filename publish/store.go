// Package publish implements the safe branch-write protocol train-list uses
// to treat git branches as a versioned key-value store: orphan-branch
// rewrites with backup/restore, bounded retry, and the two-phase
// data-branch + version-pointer publishing pattern on top of it.
package publish

import (
	"context"
	"errors"

	"github.com/go-git/go-billy/v5"

	"github.com/aliawhy/train-list/gitrepo"
)

// BranchStore is the narrow git surface the write protocol drives.
// It is satisfied by GitBranchStore in production and by an in-memory fake
// in tests, keeping the protocol itself free of go-git plumbing.
type BranchStore interface {
	// Fetch refreshes remote-tracking refs. "Already up to date" is success.
	Fetch(ctx context.Context) error

	// RemoteBranchExists reports whether the branch exists on the remote,
	// judged from the remote-tracking refs of the last Fetch.
	RemoteBranchExists(ctx context.Context, branch string) (bool, error)

	// CheckoutRemoteBranch checks out the remote branch's tip under a
	// throwaway local name.
	CheckoutRemoteBranch(ctx context.Context, branch, localName string) error

	// CheckoutBranch switches to an existing local branch, discarding any
	// uncommitted changes.
	CheckoutBranch(ctx context.Context, branch string) error

	// CreateOrphanBranch points HEAD at a new unborn branch with an empty
	// index and working tree.
	CreateOrphanBranch(ctx context.Context, branch string) error

	// DeleteLocalBranch removes a local branch. Absence is success.
	DeleteLocalBranch(ctx context.Context, branch string) error

	// DeleteRemoteBranch removes a branch from the remote. Absence is success.
	DeleteRemoteBranch(ctx context.Context, branch string) error

	// Worktree exposes the working tree for file reads and writes.
	Worktree() billy.Filesystem

	// HasChanges reports whether the working tree differs from the last
	// commit on the current branch.
	HasChanges(ctx context.Context) (bool, error)

	// CommitAll stages everything and commits it, returning the commit SHA.
	CommitAll(ctx context.Context, message string) (string, error)

	// PushBranch pushes the local branch to the same-named remote branch,
	// creating the remote ref if needed.
	PushBranch(ctx context.Context, branch string, force bool) error
}

// GitBranchStore adapts a gitrepo.Repo to the BranchStore interface.
type GitBranchStore struct {
	repo     *gitrepo.Repo
	remote   string
	identity gitrepo.Signature
}

// NewGitBranchStore wraps a cloned repository. The identity is used for every
// commit the protocol creates. An empty remote defaults to origin.
func NewGitBranchStore(repo *gitrepo.Repo, remote string, identity gitrepo.Signature) *GitBranchStore {
	if remote == "" {
		remote = gitrepo.DefaultRemoteName
	}
	return &GitBranchStore{repo: repo, remote: remote, identity: identity}
}

// Fetch refreshes remote-tracking refs; an up-to-date remote is not an error.
func (s *GitBranchStore) Fetch(ctx context.Context) error {
	err := s.repo.Fetch(ctx, s.remote, true, 0)
	if errors.Is(err, gitrepo.ErrAlreadyUpToDate) {
		return nil
	}
	return err
}

// RemoteBranchExists reports whether the remote-tracking ref is present.
func (s *GitBranchStore) RemoteBranchExists(ctx context.Context, branch string) (bool, error) {
	return s.repo.RemoteBranchExists(ctx, s.remote, branch)
}

// CheckoutRemoteBranch checks out a fetched remote branch under localName.
func (s *GitBranchStore) CheckoutRemoteBranch(ctx context.Context, branch, localName string) error {
	return s.repo.CheckoutRemoteBranch(ctx, s.remote, branch, localName)
}

// CheckoutBranch force-checks-out the named local branch.
func (s *GitBranchStore) CheckoutBranch(ctx context.Context, branch string) error {
	return s.repo.CheckoutBranch(ctx, branch, true)
}

// CreateOrphanBranch starts a fresh unborn branch with an empty tree.
func (s *GitBranchStore) CreateOrphanBranch(ctx context.Context, branch string) error {
	return s.repo.CreateOrphanBranch(ctx, branch)
}

// DeleteLocalBranch removes the local branch, treating absence as success.
func (s *GitBranchStore) DeleteLocalBranch(ctx context.Context, branch string) error {
	err := s.repo.DeleteBranch(ctx, branch)
	if errors.Is(err, gitrepo.ErrBranchMissing) {
		return nil
	}
	return err
}

// DeleteRemoteBranch removes the remote branch, treating absence as success.
func (s *GitBranchStore) DeleteRemoteBranch(ctx context.Context, branch string) error {
	return s.repo.DeleteRemoteBranch(ctx, s.remote, branch)
}

// Worktree exposes the clone's working tree filesystem.
func (s *GitBranchStore) Worktree() billy.Filesystem {
	return s.repo.Worktree()
}

// HasChanges reports whether the working tree is dirty.
func (s *GitBranchStore) HasChanges(ctx context.Context) (bool, error) {
	return s.repo.HasChanges(ctx)
}

// CommitAll stages all changes and commits with the store's identity.
func (s *GitBranchStore) CommitAll(ctx context.Context, message string) (string, error) {
	if err := s.repo.AddAll(ctx); err != nil {
		return "", err
	}
	return s.repo.Commit(ctx, message, s.identity)
}

// PushBranch pushes the branch to the remote.
func (s *GitBranchStore) PushBranch(ctx context.Context, branch string, force bool) error {
	return s.repo.PushBranch(ctx, s.remote, branch, force)
}
