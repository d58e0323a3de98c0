package publish

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"go.uber.org/zap"
)

// gitDirName is skipped when snapshotting or restoring a working tree.
const gitDirName = ".git"

// backupManager preserves a branch's current remote content before the
// branch is destructively rewritten.
type backupManager struct {
	store   BranchStore
	scratch billy.Filesystem
	log     *zap.Logger
}

// backup snapshots the remote tip of branch into scratchDir and returns the
// snapshot filesystem, or nil when no backup is available. It never fails
// the caller: a branch that does not exist remotely, or any internal error,
// simply yields a nil snapshot. The working tree is returned to baseBranch
// before backup returns, even on failure, so subsequent steps start clean.
func (m *backupManager) backup(ctx context.Context, branch, baseBranch, scratchDir string) billy.Filesystem {
	defer func() {
		if err := m.store.CheckoutBranch(ctx, baseBranch); err != nil {
			m.log.Warn("failed to return to base branch after backup",
				zap.String("base", baseBranch), zap.Error(err))
		}
	}()

	if err := m.store.Fetch(ctx); err != nil {
		m.log.Warn("fetch failed, proceeding without backup",
			zap.String("branch", branch), zap.Error(err))
		return nil
	}

	exists, err := m.store.RemoteBranchExists(ctx, branch)
	if err != nil {
		m.log.Warn("could not determine whether branch exists, proceeding without backup",
			zap.String("branch", branch), zap.Error(err))
		return nil
	}
	if !exists {
		return nil
	}

	if err := m.store.CheckoutRemoteBranch(ctx, branch, "backup-"+scratchDir); err != nil {
		m.log.Warn("failed to check out branch tip, proceeding without backup",
			zap.String("branch", branch), zap.Error(err))
		return nil
	}

	if err := m.scratch.MkdirAll(scratchDir, 0o755); err != nil {
		m.log.Warn("failed to create scratch directory, proceeding without backup",
			zap.String("dir", scratchDir), zap.Error(err))
		return nil
	}

	snapshot, err := m.scratch.Chroot(scratchDir)
	if err != nil {
		m.log.Warn("failed to scope scratch directory, proceeding without backup",
			zap.String("dir", scratchDir), zap.Error(err))
		return nil
	}

	if err := copyTree(m.store.Worktree(), snapshot); err != nil {
		m.log.Warn("failed to copy branch content, proceeding without backup",
			zap.String("branch", branch), zap.Error(err))
		return nil
	}

	m.log.Debug("branch content backed up",
		zap.String("branch", branch), zap.String("dir", scratchDir))
	return snapshot
}

// copyTree copies every regular file from src to dst, preserving relative
// paths and skipping version-control metadata.
func copyTree(src, dst billy.Filesystem) error {
	return util.Walk(src, ".", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == "." {
			return nil
		}
		if info.IsDir() {
			if info.Name() == gitDirName {
				return filepath.SkipDir
			}
			return dst.MkdirAll(path, 0o755)
		}

		data, err := util.ReadFile(src, path)
		if err != nil {
			return err
		}
		return util.WriteFile(dst, path, data, info.Mode())
	})
}

// writeWorktreeFile writes content at path, creating parent directories.
func writeWorktreeFile(fs billy.Filesystem, path string, content []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "/" {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return util.WriteFile(fs, path, content, 0o644)
}

// readWorktreeFile reads path, returning (nil, nil) when it does not exist.
func readWorktreeFile(fs billy.Filesystem, path string) ([]byte, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}
