package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliawhy/train-list/config"
	"github.com/aliawhy/train-list/gitrepo"
	"github.com/aliawhy/train-list/publish"
	"github.com/aliawhy/train-list/traindata"
)

var publishDate string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Scrape a day's schedules and publish them",
	Long: `publish queries every configured station pair for one day, aggregates the
records into a blob per dataset, and rewrites each dataset's data branch and
version pointer. Datasets publish independently: one failure does not stop
the others.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runPublish(cmd.Context())
	},
}

func init() {
	publishCmd.Flags().StringVar(&publishDate, "date", "",
		"day to scrape as YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(publishCmd)
}

// publishOutcome is the per-dataset result of one publish run.
type publishOutcome struct {
	Dataset string
	Pointer *publish.VersionPointer
	Err     error
}

func runPublish(ctx context.Context) error {
	date := publishDate
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	workRoot, err := os.MkdirTemp("", "train-list-publish-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workRoot)

	repo, scratch, err := cloneStorageRepo(ctx, workRoot)
	if err != nil {
		return err
	}

	identity := gitrepo.Signature{Name: cfg.AuthorName, Email: cfg.AuthorEmail}
	store := publish.NewGitBranchStore(repo, "", identity)
	writer := publish.NewWriter(store, scratch, logger)
	publisher := publish.NewPublisher(writer, logger)

	client := traindata.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout(), logger)
	records, fetchFailures := client.FetchDay(ctx, traindata.DefaultPairs, date)
	if len(records) == 0 {
		return fmt.Errorf("no station pair produced data for %s (%d failures)",
			date, len(fetchFailures))
	}
	logger.Info("scrape complete",
		zap.String("date", date),
		zap.Int("records", len(records)),
		zap.Int("failedPairs", len(fetchFailures)))

	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}

	outcomes := make([]publishOutcome, 0, len(cfg.Datasets))
	for i, ds := range cfg.PublishDatasets() {
		pointer, err := publishDataset(ctx, publisher, ds, cfg.Datasets[i], raw, records, date)
		outcomes = append(outcomes, publishOutcome{Dataset: ds.Name, Pointer: pointer, Err: err})
	}

	return reportOutcomes(outcomes)
}

// cloneStorageRepo clones the storage repository into workRoot and returns it
// together with the scratch filesystem used for backup snapshots.
func cloneStorageRepo(ctx context.Context, workRoot string) (*gitrepo.Repo, billy.Filesystem, error) {
	root := osfs.New(workRoot)
	for _, dir := range []string{"repo", "scratch"} {
		if err := root.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create %s directory: %w", dir, err)
		}
	}

	var auth gitrepo.AuthProvider
	if cfg.Token != "" {
		auth = gitrepo.NewTokenAuthProvider(cfg.TokenUser, cfg.Token)
	}

	repo, err := gitrepo.Clone(ctx, cfg.RepoURL, &gitrepo.Options{
		FS:      root,
		Workdir: "repo",
		Auth:    auth,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("clone %s: %w", cfg.RepoURL, err)
	}

	scratch, err := root.Chroot("scratch")
	if err != nil {
		return nil, nil, fmt.Errorf("chroot scratch: %w", err)
	}
	return repo, scratch, nil
}

func publishDataset(
	ctx context.Context,
	publisher *publish.Publisher,
	ds publish.Dataset,
	dsCfg config.DatasetConfig,
	raw []byte,
	records []traindata.TrainRecord,
	date string,
) (*publish.VersionPointer, error) {
	codec, err := traindata.CodecFor(ds.Ext)
	if err != nil {
		return nil, err
	}
	blob, err := codec.Encode(raw)
	if err != nil {
		return nil, err
	}

	hook := traindata.SummaryHook(date, records, "data/"+ds.Name+".summary.json")
	pointer, err := publisher.Publish(ctx, ds, blob, hook)
	if err != nil {
		return nil, err
	}

	if dsCfg.RawAppend {
		if err := publisher.AppendRaw(ctx, ds, date, raw); err != nil {
			return pointer, fmt.Errorf("raw append for partition %s: %w", date, err)
		}
	}
	return pointer, nil
}

func reportOutcomes(outcomes []publishOutcome) error {
	failed := 0
	for _, outcome := range outcomes {
		if outcome.Err != nil {
			failed++
			logger.Error("dataset publish failed",
				zap.String("dataset", outcome.Dataset),
				zap.Error(outcome.Err))
			continue
		}
		logger.Info("dataset published",
			zap.String("dataset", outcome.Dataset),
			zap.String("version", outcome.Pointer.Version),
			zap.String("file", outcome.Pointer.FileName))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d datasets failed to publish", failed, len(outcomes))
	}
	return nil
}
