// Package gitrepo provides branch management operations for git repositories.
// This file contains branch creation, checkout, deletion, remote branch
// handling, and orphan branch creation.
package gitrepo

import (
	"context"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
)

// CurrentBranch returns the name of the currently checked out branch.
// It returns an error if HEAD is in a detached state.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", WrapError(err, "failed to get HEAD reference")
	}

	if !head.Name().IsBranch() {
		return "", WrapError(ErrResolveFailed, "HEAD is detached")
	}

	return head.Name().Short(), nil
}

// CheckoutBranch switches to the specified local branch.
// If force is true, it discards any uncommitted changes in the working tree.
func (r *Repo) CheckoutBranch(ctx context.Context, name string, force bool) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)

	if _, err := r.repo.Reference(branchRefName, true); err != nil {
		return WrapError(ErrBranchMissing, "branch does not exist")
	}

	err := r.worktree.Checkout(&git.CheckoutOptions{
		Branch: branchRefName,
		Force:  force,
	})
	if err != nil {
		return WrapErrorf(err, "failed to checkout branch %q", name)
	}

	return nil
}

// CheckoutRemoteBranch creates a local branch from a remote-tracking branch
// and checks it out. If localName is empty, it uses the remote branch name.
// The remote branch must have been fetched beforehand.
func (r *Repo) CheckoutRemoteBranch(ctx context.Context, remote, remoteBranch, localName string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	if remoteBranch == "" {
		return WrapError(ErrInvalidRef, "remote branch name cannot be empty")
	}

	if localName == "" {
		localName = remoteBranch
	}

	remoteRef, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, remoteBranch), true)
	if err != nil {
		return WrapError(ErrResolveFailed, "remote branch does not exist")
	}

	localRefName := plumbing.NewBranchReferenceName(localName)
	if err := r.repo.Storer.SetReference(plumbing.NewHashReference(localRefName, remoteRef.Hash())); err != nil {
		return WrapError(err, "failed to create local branch")
	}

	err = r.worktree.Checkout(&git.CheckoutOptions{
		Branch: localRefName,
		Force:  true,
	})
	if err != nil {
		return WrapError(err, "failed to checkout local branch")
	}

	return nil
}

// CreateOrphanBranch points HEAD at a new unborn branch and resets the index
// and working tree to an empty state. The next commit on the branch will have
// no parents and no inherited file content.
//
// Any existing local branch of the same name is discarded first so ancestry
// cannot leak into the new branch.
func (r *Repo) CreateOrphanBranch(ctx context.Context, name string) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)

	// Drop a stale branch ref of the same name; absence is fine.
	_ = r.repo.Storer.RemoveReference(branchRefName)

	symbolic := plumbing.NewSymbolicReference(plumbing.HEAD, branchRefName)
	if err := r.repo.Storer.SetReference(symbolic); err != nil {
		return WrapError(err, "failed to point HEAD at orphan branch")
	}

	// Empty the index so nothing from the previous checkout is staged.
	if err := r.repo.Storer.SetIndex(&index.Index{Version: 2}); err != nil {
		return WrapError(err, "failed to reset index")
	}

	// Empty the working tree, keeping only the .git directory.
	entries, err := r.wtfs.ReadDir(".")
	if err != nil {
		return WrapError(err, "failed to list working tree")
	}
	for _, entry := range entries {
		if entry.Name() == git.GitDirName {
			continue
		}
		if err := util.RemoveAll(r.wtfs, entry.Name()); err != nil {
			return WrapErrorf(err, "failed to remove %q from working tree", entry.Name())
		}
	}

	return nil
}

// DeleteBranch deletes the specified local branch.
// Deleting a branch that does not exist returns ErrBranchMissing.
func (r *Repo) DeleteBranch(ctx context.Context, name string) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	branchRefName := plumbing.NewBranchReferenceName(name)

	if _, err := r.repo.Reference(branchRefName, true); err != nil {
		return WrapError(ErrBranchMissing, "branch does not exist")
	}

	if err := r.repo.Storer.RemoveReference(branchRefName); err != nil {
		return WrapError(err, "failed to delete branch")
	}

	return nil
}

// RemoteBranchExists reports whether the remote-tracking ref for the given
// branch is present. Callers should Fetch first for an up-to-date answer.
func (r *Repo) RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error) {
	if remote == "" {
		remote = DefaultRemoteName
	}

	if branch == "" {
		return false, WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	_, err := r.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err == nil {
		return true, nil
	}
	if err == plumbing.ErrReferenceNotFound {
		return false, nil
	}
	return false, WrapError(err, "failed to resolve remote branch")
}

// CommitParentCount returns the number of parents of the tip commit of the
// given local branch. An orphan rewrite leaves exactly zero.
func (r *Repo) CommitParentCount(ctx context.Context, branch string) (int, error) {
	ref, err := r.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return 0, WrapError(ErrBranchMissing, "branch does not exist")
	}

	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return 0, WrapError(err, "failed to load tip commit")
	}

	return commit.NumParents(), nil
}
