package publish

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestWriter wires a Writer to the fake store with an in-memory scratch
// filesystem, a fixed clock, and recorded (not slept) backoff delays.
func newTestWriter(t *testing.T, store BranchStore) (*Writer, billy.Filesystem, *[]time.Duration) {
	t.Helper()

	scratch := memfs.New()
	w := NewWriter(store, scratch, zap.NewNop())
	w.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	sleeps := &[]time.Duration{}
	w.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }

	return w, scratch, sleeps
}

func requireScratchEmpty(t *testing.T, scratch billy.Filesystem) {
	t.Helper()
	entries, err := scratch.ReadDir(".")
	require.NoError(t, err)
	require.Empty(t, entries, "scratch backup directories must not survive a write")
}

func TestSafeWrite_CreatesBranchFromScratch(t *testing.T) {
	store := newFakeStore()
	w, scratch, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "target",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "data/x.json",
		Content:        []byte(`{"a":1}`),
		DeleteBranches: []string{"target"},
		CommitMessage:  "publish x",
	})
	require.NoError(t, err)

	tree, ok := store.remote["target"]
	require.True(t, ok, "target branch must exist remotely")
	assert.Equal(t, []byte(`{"a":1}`), tree["data/x.json"])
	assert.Equal(t, 1, store.remoteHistory["target"], "branch must hold exactly one commit")
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_MergerAppendsToExistingContent(t *testing.T) {
	store := newFakeStore()
	store.seedRemote("track", fakeTree{"track/a.json": []byte(`[1,2]`)})
	w, scratch, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "track",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "track/a.json",
		Merger:         AppendJSONArray([]byte(`[3]`)),
		DeleteBranches: []string{"track"},
		CommitMessage:  "append",
	})
	require.NoError(t, err)

	tree := store.remote["track"]
	assert.JSONEq(t, `[1,2,3]`, string(tree["track/a.json"]))
	assert.Equal(t, 1, store.remoteHistory["track"], "append still rewrites to a single fresh commit")
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_OverwriteDropsOldContent(t *testing.T) {
	store := newFakeStore()
	store.seedRemote("target", fakeTree{"data/old.json": []byte(`"old"`)})
	w, _, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "target",
		BaseBranch:     "main",
		NeedsBackup:    false,
		FilePath:       "data/new.json",
		Content:        []byte(`"new"`),
		DeleteBranches: []string{"target"},
		CommitMessage:  "overwrite",
	})
	require.NoError(t, err)

	tree := store.remote["target"]
	assert.NotContains(t, tree, "data/old.json", "no backup means old content is gone")
	assert.Equal(t, []byte(`"new"`), tree["data/new.json"])
}

func TestSafeWrite_BackupPreservesExistingFiles(t *testing.T) {
	store := newFakeStore()
	store.seedRemote("target", fakeTree{"data/old.json": []byte(`"old"`)})
	w, scratch, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "target",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "data/new.json",
		Content:        []byte(`"new"`),
		DeleteBranches: []string{"target"},
		CommitMessage:  "add alongside",
	})
	require.NoError(t, err)

	tree := store.remote["target"]
	assert.Equal(t, []byte(`"old"`), tree["data/old.json"], "backed-up content survives the rewrite")
	assert.Equal(t, []byte(`"new"`), tree["data/new.json"])
	assert.Equal(t, 1, store.remoteHistory["target"])
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_RetryConvergence(t *testing.T) {
	store := newFakeStore()
	store.pushFailures["target"] = 1
	w, scratch, sleeps := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "target",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "data/x.json",
		Content:        []byte(`{"a":1}`),
		DeleteBranches: []string{"target"},
		CommitMessage:  "publish",
	})
	require.NoError(t, err)

	tree := store.remote["target"]
	assert.Equal(t, []byte(`{"a":1}`), tree["data/x.json"])
	assert.Equal(t, 1, store.remoteHistory["target"], "retry must not stack a second commit")
	require.Len(t, *sleeps, 1, "one failed attempt means one backoff wait")
	assert.Equal(t, 2*time.Second, (*sleeps)[0])
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_ExhaustedRetries(t *testing.T) {
	store := newFakeStore()
	store.pushFailures["target"] = 10
	w, scratch, sleeps := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:  "target",
		BaseBranch:    "main",
		FilePath:      "data/x.json",
		Content:       []byte(`{"a":1}`),
		CommitMessage: "publish",
		MaxAttempts:   3,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	assert.Len(t, *sleeps, 2, "no backoff wait after the final attempt")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *sleeps)
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_SecondIdenticalCallKeepsSingleCommit(t *testing.T) {
	store := newFakeStore()
	w, _, _ := newTestWriter(t, store)

	opts := WriteOptions{
		TargetBranch:   "target",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "data/x.json",
		Content:        []byte(`{"a":1}`),
		DeleteBranches: []string{"target"},
		CommitMessage:  "publish",
	}

	require.NoError(t, w.SafeWrite(context.Background(), opts))
	require.NoError(t, w.SafeWrite(context.Background(), opts))

	assert.Equal(t, 1, store.remoteHistory["target"], "identical rewrite must leave a single commit")
	assert.Equal(t, []byte(`{"a":1}`), store.remote["target"]["data/x.json"])
}

func TestSafeWrite_BaseBranchFallback(t *testing.T) {
	store := newFakeStore()
	store.baseMissing = true
	w, _, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:  "target",
		BaseBranch:    "main",
		FilePath:      "data/x.json",
		Content:       []byte(`{"a":1}`),
		CommitMessage: "publish",
	})
	require.NoError(t, err, "a missing base branch must not abort the write")
	assert.Equal(t, []byte(`{"a":1}`), store.remote["target"]["data/x.json"])
}

func TestSafeWrite_PreCommitHookFilesLandInSameCommit(t *testing.T) {
	store := newFakeStore()
	w, _, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:  "target",
		BaseBranch:    "main",
		FilePath:      "data/x.json",
		Content:       []byte(`{"a":1}`),
		CommitMessage: "publish with report",
		PreCommit: func(ctx context.Context, wt billy.Filesystem) error {
			return writeWorktreeFile(wt, "data/report.txt", []byte("1 record"))
		},
	})
	require.NoError(t, err)

	tree := store.remote["target"]
	assert.Equal(t, []byte("1 record"), tree["data/report.txt"])
	assert.Equal(t, 1, store.remoteHistory["target"], "hook output shares the data commit")
}

func TestSafeWrite_PreCommitHookFailureIsRetried(t *testing.T) {
	store := newFakeStore()
	w, scratch, sleeps := newTestWriter(t, store)

	calls := 0
	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:  "target",
		BaseBranch:    "main",
		FilePath:      "data/x.json",
		Content:       []byte(`{"a":1}`),
		CommitMessage: "publish",
		PreCommit: func(ctx context.Context, wt billy.Filesystem) error {
			calls++
			if calls == 1 {
				return errors.New("report generation failed")
			}
			return nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, *sleeps, 1)
	requireScratchEmpty(t, scratch)
}

func TestSafeWrite_MergerFallbackOnUnparseableOldContent(t *testing.T) {
	store := newFakeStore()
	store.seedRemote("track", fakeTree{"track/a.json": []byte(`not json at all`)})
	w, _, _ := newTestWriter(t, store)

	err := w.SafeWrite(context.Background(), WriteOptions{
		TargetBranch:   "track",
		BaseBranch:     "main",
		NeedsBackup:    true,
		FilePath:       "track/a.json",
		Merger:         AppendJSONArray([]byte(`[3]`)),
		DeleteBranches: []string{"track"},
		CommitMessage:  "append",
	})
	require.NoError(t, err)

	assert.JSONEq(t, `[3]`, string(store.remote["track"]["track/a.json"]),
		"unparseable old content is discarded, fresh records kept")
}

func TestSafeWrite_OptionValidation(t *testing.T) {
	store := newFakeStore()
	w, _, _ := newTestWriter(t, store)
	ctx := context.Background()

	cases := []struct {
		name string
		opts WriteOptions
	}{
		{"missing target", WriteOptions{BaseBranch: "main", FilePath: "f", Content: []byte("x"), CommitMessage: "m"}},
		{"missing base", WriteOptions{TargetBranch: "t", FilePath: "f", Content: []byte("x"), CommitMessage: "m"}},
		{"missing path", WriteOptions{TargetBranch: "t", BaseBranch: "main", Content: []byte("x"), CommitMessage: "m"}},
		{"missing message", WriteOptions{TargetBranch: "t", BaseBranch: "main", FilePath: "f", Content: []byte("x")}},
		{"no content or merger", WriteOptions{TargetBranch: "t", BaseBranch: "main", FilePath: "f", CommitMessage: "m"}},
		{
			"both content and merger",
			WriteOptions{
				TargetBranch: "t", BaseBranch: "main", FilePath: "f", CommitMessage: "m",
				Content: []byte("x"), Merger: AppendJSONArray([]byte(`[]`)),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Error(t, w.SafeWrite(ctx, tc.opts))
		})
	}
}
