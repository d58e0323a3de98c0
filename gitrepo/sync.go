// Package gitrepo provides a high-level Go wrapper for go-git operations.
// This file contains synchronization operations (fetch, push, remote deletes).
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
)

// Fetch fetches changes from the specified remote.
// It supports pruning stale remote branches and shallow fetching when depth > 0.
// Returns ErrAlreadyUpToDate if there are no changes to fetch.
//
// Context timeout/cancellation is honored during the fetch operation.
func (r *Repo) Fetch(ctx context.Context, remote string, prune bool, depth int) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: remote,
		Prune:      prune,
		Depth:      depth,
	}

	authMethod, err := r.authForRemote(remote)
	if err != nil {
		return err
	}
	fetchOpts.Auth = authMethod

	err = r.repo.FetchContext(ctx, fetchOpts)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return WrapError(ErrResolveFailed, "remote not found")
		}
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return ErrAlreadyUpToDate
		}
		return WrapError(err, "failed to fetch from remote")
	}

	return nil
}

// PushBranch pushes the given local branch to the same-named branch on the
// remote, creating the remote tracking ref if needed.
// Returns ErrNotFastForward if the push would overwrite remote changes and
// force is false. Returns ErrAlreadyUpToDate when there is nothing to push.
//
// Context timeout/cancellation is honored during the push operation.
func (r *Repo) PushBranch(ctx context.Context, remote, branch string, force bool) error {
	if branch == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	spec := fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch)
	return r.push(ctx, remote, gitconfig.RefSpec(spec), force)
}

// DeleteRemoteBranch removes the given branch from the remote by pushing an
// empty refspec source. A branch that is already absent is not an error.
//
// Context timeout/cancellation is honored during the push operation.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, remote, branch string) error {
	if branch == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	spec := fmt.Sprintf(":refs/heads/%s", branch)
	err := r.push(ctx, remote, gitconfig.RefSpec(spec), true)
	if err == nil || errors.Is(err, ErrAlreadyUpToDate) {
		return nil
	}
	// Remotes report deletion of an absent ref in different ways; treat any
	// "not found" flavor as already deleted.
	msg := err.Error()
	if strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist") {
		return nil
	}
	return err
}

func (r *Repo) push(ctx context.Context, remote string, spec gitconfig.RefSpec, force bool) error {
	if remote == "" {
		remote = DefaultRemoteName
	}

	pushOpts := &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{spec},
		Force:      force,
	}

	authMethod, err := r.authForRemote(remote)
	if err != nil {
		return err
	}
	pushOpts.Auth = authMethod

	err = r.repo.PushContext(ctx, pushOpts)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return WrapError(ErrResolveFailed, "remote not found")
		}
		if errors.Is(err, git.NoErrAlreadyUpToDate) {
			return ErrAlreadyUpToDate
		}
		if errors.Is(err, git.ErrNonFastForwardUpdate) {
			return ErrNotFastForward
		}
		return WrapError(err, "failed to push to remote")
	}

	return nil
}
