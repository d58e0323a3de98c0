package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// VersionPointer is the small JSON document on a dataset's version branch
// that tells readers where the latest blob lives. It is rewritten as a whole
// on every successful data publish and never partially updated.
type VersionPointer struct {
	Version  string `json:"_version"`
	FileName string `json:"_fileName"`
	DataURL  string `json:"_dataUrl"`
}

// Dataset describes one logical dataset published to its own branch pair.
type Dataset struct {
	// Name is the dataset identifier, e.g. "gdcj-train-detail".
	Name string

	// Ext is the blob file extension, e.g. "json" or "json.gz".
	Ext string

	// BaseBranch is the repository's main line, used as the stable checkout
	// target between destructive branch operations.
	BaseBranch string

	// DataURLTemplate renders the pointer's download URL. {branch} and
	// {file} placeholders are substituted. Empty leaves DataURL blank.
	DataURLTemplate string

	// MaxAttempts bounds each branch write. Zero means DefaultMaxAttempts.
	MaxAttempts int
}

// Validate checks the dataset configuration.
func (d *Dataset) Validate() error {
	if err := ValidateDatasetName(d.Name); err != nil {
		return err
	}
	if d.Ext == "" {
		return fmt.Errorf("dataset %q: blob extension is required", d.Name)
	}
	if d.BaseBranch == "" {
		return fmt.Errorf("dataset %q: base branch is required", d.Name)
	}
	return nil
}

// Publisher implements the two-phase data-then-version publish: a blob goes
// to the data branch first, and only after that push is durable is the
// version pointer rewritten. A reader that resolves the pointer therefore
// never sees a blob that has not finished publishing.
type Publisher struct {
	writer *Writer
	log    *zap.Logger
	now    func() time.Time
}

// NewPublisher creates a Publisher on top of a Writer.
// A nil logger disables logging.
func NewPublisher(writer *Writer, log *zap.Logger) *Publisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Publisher{writer: writer, log: log, now: time.Now}
}

// Publish writes blob to the dataset's data branch and then updates the
// version branch pointer. The returned pointer describes the published blob.
//
// A data-branch failure is terminal and returned. A version-branch failure
// is logged and swallowed: the blob is already durable, and the stale
// pointer heals on the next successful publish.
func (p *Publisher) Publish(ctx context.Context, ds Dataset, blob []byte, hook PreCommitHook) (*VersionPointer, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	version := VersionStamp(p.now())
	fileName := BlobFileName(ds.Name, version, ds.Ext)
	dataBranch := DataBranch(ds.Name)

	err := p.writer.SafeWrite(ctx, WriteOptions{
		TargetBranch:   dataBranch,
		BaseBranch:     ds.BaseBranch,
		NeedsBackup:    false,
		FilePath:       BlobPath(fileName),
		Content:        blob,
		DeleteBranches: []string{dataBranch},
		PreCommit:      hook,
		CommitMessage:  fmt.Sprintf("publish %s %s", ds.Name, version),
		MaxAttempts:    ds.MaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("publish data blob for %q: %w", ds.Name, err)
	}

	pointer := &VersionPointer{
		Version:  version,
		FileName: fileName,
		DataURL:  renderDataURL(ds.DataURLTemplate, dataBranch, fileName),
	}

	if err := p.publishVersion(ctx, ds, pointer); err != nil {
		p.log.Warn("version pointer publish failed, data branch is ahead until next run",
			zap.String("dataset", ds.Name),
			zap.String("version", version),
			zap.Error(err))
	}

	return pointer, nil
}

// publishVersion rewrites the dataset's version branch with the pointer.
// The version file is always a full overwrite, so no backup is taken and the
// branch is recreated from scratch on every publish.
func (p *Publisher) publishVersion(ctx context.Context, ds Dataset, pointer *VersionPointer) error {
	payload, err := json.MarshalIndent(pointer, "", "  ")
	if err != nil {
		return fmt.Errorf("encode version pointer: %w", err)
	}

	versionBranch := VersionBranch(ds.Name)
	return p.writer.SafeWrite(ctx, WriteOptions{
		TargetBranch:   versionBranch,
		BaseBranch:     ds.BaseBranch,
		NeedsBackup:    false,
		FilePath:       VersionFilePath(ds.Name),
		Content:        append(payload, '\n'),
		DeleteBranches: []string{versionBranch},
		CommitMessage:  fmt.Sprintf("version %s %s", ds.Name, pointer.Version),
		MaxAttempts:    ds.MaxAttempts,
	})
}

// AppendRaw appends fresh records (a JSON array) to the dataset's
// date-partitioned append-only branch. The previous partition content is
// preserved through a backup snapshot and merged with the new records inside
// a single orphan-branch rewrite, so read-merge-write cannot race.
func (p *Publisher) AppendRaw(ctx context.Context, ds Dataset, partition string, fresh []byte) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	if partition == "" {
		return fmt.Errorf("dataset %q: partition is required", ds.Name)
	}

	branch := BackupBranch(ds.Name, partition)
	err := p.writer.SafeWrite(ctx, WriteOptions{
		TargetBranch:   branch,
		BaseBranch:     ds.BaseBranch,
		NeedsBackup:    true,
		FilePath:       fmt.Sprintf("data/%s.%s.json", ds.Name, partition),
		Merger:         AppendJSONArray(fresh),
		DeleteBranches: []string{branch},
		CommitMessage:  fmt.Sprintf("append %s %s", ds.Name, partition),
		MaxAttempts:    ds.MaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("append raw records for %q: %w", ds.Name, err)
	}
	return nil
}

func renderDataURL(template, branch, fileName string) string {
	if template == "" {
		return ""
	}
	url := strings.ReplaceAll(template, "{branch}", branch)
	return strings.ReplaceAll(url, "{file}", fileName)
}
