// Package gitrepo provides a high-level Go wrapper for go-git operations.
// It exposes the narrow set of repository operations the train-list publisher
// needs: clone/init/open on a billy filesystem, branch manipulation including
// orphan branches, worktree staging, commits, and remote synchronization.
package gitrepo

import (
	"context"
	"time"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

const (
	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"
)

// AuthProvider resolves authentication methods for git operations.
// Implementations should handle different URL schemes and credential sources.
type AuthProvider interface {
	// Method returns the appropriate transport.AuthMethod for the given remote URL.
	// Returns nil if no authentication is needed/available for this URL.
	// Returns an error if authentication cannot be resolved for the URL.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// Signature identifies the author/committer of a commit.
type Signature struct {
	// Name is the author's or committer's name.
	Name string

	// Email is the author's or committer's email address.
	Email string

	// When is the timestamp for the signature. Zero means "now".
	When time.Time
}

// Options configures repository discovery/creation.
type Options struct {
	// FS is the REQUIRED filesystem root (OS or in-memory).
	// All repository state lives within this filesystem.
	FS gobilly.Filesystem

	// Workdir is the path within FS for the worktree root.
	// Defaults to "." (current directory in FS).
	Workdir string

	// Auth is an optional provider that resolves per-URL AuthMethod.
	// If nil, no authentication will be available.
	Auth AuthProvider

	// ShallowDepth sets the depth for shallow clone/fetch operations.
	// If > 0, operations will be shallow with the specified depth.
	ShallowDepth int
}

// Validate checks that the Options are properly configured.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}

	if o.ShallowDepth < 0 {
		return WrapError(ErrInvalidRef, "ShallowDepth cannot be negative")
	}

	return nil
}

func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}
}

// Repo represents a git repository and provides high-level operations.
// It wraps a go-git Repository and Worktree.
//
// A Repo is NOT safe for concurrent writes; the publisher drives it from a
// single goroutine.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	wtfs     gobilly.Filesystem
	options  Options
}

// Worktree returns the filesystem rooted at the repository's working tree.
// Callers may write files through it before staging them with Add.
func (r *Repo) Worktree() gobilly.Filesystem {
	return r.wtfs
}

// openStorage chroots into the workdir and builds go-git storage backed by
// the .git directory, returning the worktree filesystem alongside it.
func openStorage(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	scopedFS, err := opts.FS.Chroot(opts.Workdir)
	if err != nil {
		return nil, nil, WrapErrorf(err, "failed to chroot to workdir %q", opts.Workdir)
	}

	dotGitFS, err := scopedFS.Chroot(git.GitDirName)
	if err != nil {
		return nil, nil, WrapError(err, "failed to access .git directory")
	}

	storage := filesystem.NewStorage(dotGitFS, cache.NewObjectLRUDefault())
	return storage, scopedFS, nil
}

// Init creates a new non-bare git repository at the specified location.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	storage, worktreeFS, err := openStorage(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}

	return newRepo(repo, worktreeFS, opts)
}

// Open opens an existing git repository at the specified workdir.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	storage, worktreeFS, err := openStorage(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to open repository")
	}

	return newRepo(repo, worktreeFS, opts)
}

// Clone creates a new repository by cloning from a remote URL.
// Authentication is resolved through the AuthProvider if one is configured.
//
// Context timeout/cancellation is honored during the clone operation.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	if err := opts.Validate(); err != nil {
		return nil, WrapError(err, "invalid options")
	}

	opts.applyDefaults()

	storage, worktreeFS, err := openStorage(opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:   remoteURL,
		Depth: opts.ShallowDepth,
	}

	if opts.Auth != nil {
		authMethod, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, WrapError(authErr, "failed to get authentication method")
		}
		cloneOpts.Auth = authMethod
	}

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		return nil, WrapError(err, "failed to clone repository")
	}

	return newRepo(repo, worktreeFS, opts)
}

func newRepo(repo *git.Repository, worktreeFS gobilly.Filesystem, opts *Options) (*Repo, error) {
	worktree, err := repo.Worktree()
	if err != nil {
		return nil, WrapError(err, "failed to get worktree")
	}

	return &Repo{
		repo:     repo,
		worktree: worktree,
		wtfs:     worktreeFS,
		options:  *opts,
	}, nil
}

// authForRemote resolves the AuthMethod for the configured remote, if any.
func (r *Repo) authForRemote(remote string) (transport.AuthMethod, error) {
	if r.options.Auth == nil {
		return nil, nil
	}

	remoteConfig, err := r.repo.Remote(remote)
	if err != nil {
		return nil, WrapError(err, "failed to get remote configuration")
	}

	authMethod, err := r.options.Auth.Method(remoteConfig.Config().URLs[0])
	if err != nil {
		return nil, WrapError(ErrAuthRequired, "failed to get authentication method")
	}

	return authMethod, nil
}
