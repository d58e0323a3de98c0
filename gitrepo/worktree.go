// Package gitrepo provides a high-level Go wrapper for go-git operations.
// This file contains worktree operations (file I/O, staging, commit, status).
package gitrepo

import (
	"context"
	"errors"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// WriteFile writes content to the given path inside the working tree,
// creating parent directories as needed. The file is not staged.
func (r *Repo) WriteFile(filePath string, content []byte) error {
	if filePath == "" {
		return WrapError(ErrInvalidRef, "file path cannot be empty")
	}

	if dir := path.Dir(filePath); dir != "." && dir != "/" {
		if err := r.wtfs.MkdirAll(dir, 0o755); err != nil {
			return WrapErrorf(err, "failed to create directory %q", dir)
		}
	}

	if err := util.WriteFile(r.wtfs, filePath, content, 0o644); err != nil {
		return WrapErrorf(err, "failed to write %q", filePath)
	}

	return nil
}

// ReadFile reads a file from the working tree.
// It returns (nil, nil) when the file does not exist, so callers can treat
// absence as "no prior content".
func (r *Repo) ReadFile(filePath string) ([]byte, error) {
	data, err := util.ReadFile(r.wtfs, filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, WrapErrorf(err, "failed to read %q", filePath)
	}
	return data, nil
}

// AddAll stages every change in the working tree, including deletions.
// Equivalent to running 'git add -A'.
func (r *Repo) AddAll(ctx context.Context) error {
	if err := r.worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return WrapError(err, "failed to stage changes")
	}
	return nil
}

// HasChanges reports whether the working tree differs from the last commit
// on the current branch. On an unborn branch every file counts as a change.
func (r *Repo) HasChanges(ctx context.Context) (bool, error) {
	status, err := r.worktree.Status()
	if err != nil {
		return false, WrapError(err, "failed to get worktree status")
	}
	return !status.IsClean(), nil
}

// Commit creates a new commit with the specified message and signature and
// returns its SHA. With no staged changes it returns ErrEmptyCommit.
func (r *Repo) Commit(ctx context.Context, msg string, who Signature) (string, error) {
	if msg == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}

	if who.Name == "" || who.Email == "" {
		return "", WrapError(ErrInvalidRef, "committer name and email are required")
	}

	if who.When.IsZero() {
		who.When = time.Now()
	}

	sig := &object.Signature{
		Name:  who.Name,
		Email: who.Email,
		When:  who.When,
	}

	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return "", ErrEmptyCommit
		}
		return "", WrapError(err, "failed to create commit")
	}

	return hash.String(), nil
}
