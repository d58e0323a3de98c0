package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
)

// DefaultMaxAttempts bounds the retry loop when WriteOptions does not.
const DefaultMaxAttempts = 3

// ContentMerger combines the previous content of the target file with freshly
// produced data and returns the final bytes to write. old is nil when the
// file did not exist after backup restore.
type ContentMerger func(old []byte) ([]byte, error)

// PreCommitHook runs after the target file is written but before the commit.
// Files it writes into the working tree land in the same commit.
type PreCommitHook func(ctx context.Context, worktree billy.Filesystem) error

// WriteOptions describes one safe branch write.
type WriteOptions struct {
	// TargetBranch is the branch whose remote tip is rewritten to a single
	// orphan commit holding the new content.
	TargetBranch string

	// BaseBranch is the branch checked out between destructive operations so
	// the repository always has a valid checkout target.
	BaseBranch string

	// NeedsBackup preserves the target branch's existing content across the
	// rewrite by snapshotting its remote tip first.
	NeedsBackup bool

	// FilePath is the repository-relative path of the file to write.
	FilePath string

	// Content is written verbatim when Merger is nil.
	Content []byte

	// Merger, when set, receives the file's prior content (nil if absent)
	// and produces the bytes to write. Exactly one of Content/Merger is used.
	Merger ContentMerger

	// DeleteBranches are force-deleted locally and remotely before the
	// orphan branch is created, typically including TargetBranch itself.
	DeleteBranches []string

	// PreCommit is an optional hook for derived files captured in the same
	// commit as the data write.
	PreCommit PreCommitHook

	// CommitMessage is the message of the single orphan commit.
	CommitMessage string

	// MaxAttempts bounds the retry loop. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

func (o *WriteOptions) validate() error {
	if o.TargetBranch == "" {
		return errors.New("target branch is required")
	}
	if o.BaseBranch == "" {
		return errors.New("base branch is required")
	}
	if o.FilePath == "" {
		return errors.New("file path is required")
	}
	if o.CommitMessage == "" {
		return errors.New("commit message is required")
	}
	if o.Content != nil && o.Merger != nil {
		return errors.New("content and merger are mutually exclusive")
	}
	if o.Content == nil && o.Merger == nil {
		return errors.New("either content or a merger is required")
	}
	return nil
}

func (o *WriteOptions) attempts() int {
	if o.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return o.MaxAttempts
}

// Writer runs the safe branch-write protocol against a BranchStore.
//
// Each SafeWrite call runs to completion before the caller proceeds; the
// Writer performs no concurrent branch writes of its own.
type Writer struct {
	store   BranchStore
	scratch billy.Filesystem
	backups *backupManager
	log     *zap.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// NewWriter creates a Writer. scratch holds per-attempt backup snapshot
// directories; it must be exclusively owned by this Writer. A nil logger
// disables logging.
func NewWriter(store BranchStore, scratch billy.Filesystem, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		store:   store,
		scratch: scratch,
		backups: &backupManager{store: store, scratch: scratch, log: log},
		log:     log,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SafeWrite rewrites the target branch's remote tip to a single orphan commit
// containing the requested content, with backup safety and bounded retry.
//
// Per attempt: backup (when requested) -> delete conflicting branches ->
// create orphan branch -> restore backup -> merge/write the file -> run the
// pre-commit hook -> commit and push. Any failure deletes the attempt's
// scratch snapshot, waits with exponential backoff, and retries from the
// backup step. Because the orphan branch is recreated from scratch every
// time, a retry never double-applies a partial write.
func (w *Writer) SafeWrite(ctx context.Context, opts WriteOptions) error {
	if err := opts.validate(); err != nil {
		return fmt.Errorf("invalid write options: %w", err)
	}

	maxAttempts := opts.attempts()
	delay := &backoff.Backoff{
		Min:    2 * time.Second,
		Max:    5 * time.Minute,
		Factor: 2,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := w.writeOnce(ctx, &opts, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		w.log.Warn("branch write attempt failed",
			zap.String("branch", opts.TargetBranch),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Error(err))

		if attempt < maxAttempts {
			w.sleep(delay.Duration())
		}
	}

	return fmt.Errorf("branch %q write failed after %d attempts: %w",
		opts.TargetBranch, maxAttempts, lastErr)
}

func (w *Writer) writeOnce(ctx context.Context, opts *WriteOptions, attempt int) error {
	scratchDir := attemptDir(opts.TargetBranch, w.now(), attempt)
	defer func() {
		if err := util.RemoveAll(w.scratch, scratchDir); err != nil {
			w.log.Warn("failed to remove scratch backup directory",
				zap.String("dir", scratchDir), zap.Error(err))
		}
	}()

	var snapshot billy.Filesystem
	if opts.NeedsBackup {
		snapshot = w.backups.backup(ctx, opts.TargetBranch, opts.BaseBranch, scratchDir)
	}

	w.deleteBranches(ctx, opts.DeleteBranches)

	if err := w.store.CheckoutBranch(ctx, opts.BaseBranch); err != nil {
		// The base branch may itself have been deleted. Create a throwaway
		// orphan so the repository still has a valid checkout target.
		placeholder := "orphan-base-" + VersionStamp(w.now())
		w.log.Warn("base branch checkout failed, using placeholder orphan",
			zap.String("base", opts.BaseBranch),
			zap.String("placeholder", placeholder),
			zap.Error(err))
		if orphanErr := w.store.CreateOrphanBranch(ctx, placeholder); orphanErr != nil {
			return fmt.Errorf("checkout base branch %q: %w", opts.BaseBranch, err)
		}
	}

	if err := w.store.CreateOrphanBranch(ctx, opts.TargetBranch); err != nil {
		return fmt.Errorf("create orphan branch %q: %w", opts.TargetBranch, err)
	}

	if snapshot != nil {
		if err := copyTree(snapshot, w.store.Worktree()); err != nil {
			w.log.Warn("failed to restore backup snapshot",
				zap.String("branch", opts.TargetBranch), zap.Error(err))
		}
	}

	content, err := w.resolveContent(opts)
	if err != nil {
		return err
	}

	if err := writeWorktreeFile(w.store.Worktree(), opts.FilePath, content); err != nil {
		return fmt.Errorf("write %q: %w", opts.FilePath, err)
	}

	if opts.PreCommit != nil {
		if err := opts.PreCommit(ctx, w.store.Worktree()); err != nil {
			return fmt.Errorf("pre-commit hook: %w", err)
		}
	}

	changed, err := w.store.HasChanges(ctx)
	if err != nil {
		return fmt.Errorf("check working tree status: %w", err)
	}
	if !changed {
		w.log.Info("working tree unchanged, skipping commit and push",
			zap.String("branch", opts.TargetBranch))
		return nil
	}

	sha, err := w.store.CommitAll(ctx, opts.CommitMessage)
	if err != nil {
		return fmt.Errorf("commit on %q: %w", opts.TargetBranch, err)
	}

	if err := w.store.PushBranch(ctx, opts.TargetBranch, true); err != nil {
		return fmt.Errorf("push %q: %w", opts.TargetBranch, err)
	}

	w.log.Info("branch rewritten",
		zap.String("branch", opts.TargetBranch),
		zap.String("commit", sha),
		zap.Int("attempt", attempt))
	return nil
}

// deleteBranches force-removes the given branches locally and remotely.
// Failures are logged and swallowed; a half-deleted branch is cleaned up by
// the orphan rewrite that follows.
func (w *Writer) deleteBranches(ctx context.Context, branches []string) {
	for _, branch := range branches {
		if branch == "" {
			continue
		}
		if err := w.store.DeleteLocalBranch(ctx, branch); err != nil {
			w.log.Warn("failed to delete local branch",
				zap.String("branch", branch), zap.Error(err))
		}
		if err := w.store.DeleteRemoteBranch(ctx, branch); err != nil {
			w.log.Warn("failed to delete remote branch",
				zap.String("branch", branch), zap.Error(err))
		}
	}
}

// resolveContent produces the final file bytes, consulting the merger with
// the current on-disk content when one was supplied. Old content the merger
// cannot digest is discarded in favor of the fresh records alone.
func (w *Writer) resolveContent(opts *WriteOptions) ([]byte, error) {
	if opts.Merger == nil {
		return opts.Content, nil
	}

	old, err := readWorktreeFile(w.store.Worktree(), opts.FilePath)
	if err != nil {
		w.log.Warn("failed to read previous content, treating as absent",
			zap.String("path", opts.FilePath), zap.Error(err))
		old = nil
	}

	merged, err := opts.Merger(old)
	if err == nil {
		return merged, nil
	}

	w.log.Warn("content merge failed, discarding previous content",
		zap.String("path", opts.FilePath), zap.Error(err))

	merged, err = opts.Merger(nil)
	if err != nil {
		return nil, fmt.Errorf("content merge: %w", err)
	}
	return merged, nil
}

// attemptDir derives a collision-free scratch directory name for one attempt.
func attemptDir(branch string, now time.Time, attempt int) string {
	safe := strings.ReplaceAll(branch, "/", "-")
	return fmt.Sprintf("%s.%s.%d", safe, VersionStamp(now), attempt)
}
