package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	cp "github.com/otiai10/copy"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aliawhy/train-list/gitrepo"
	"github.com/aliawhy/train-list/history"
	"github.com/aliawhy/train-list/publish"
	"github.com/aliawhy/train-list/traindata"
)

var (
	exportDataset string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download a dataset's latest blob into a local directory",
	Long: `export resolves a dataset's version pointer, downloads the blob it names,
decodes it, and copies the result into the output directory together with the
pointer file.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runExport(cmd.Context())
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDataset, "dataset", "", "dataset to export")
	exportCmd.Flags().StringVar(&exportOut, "out", ".", "output directory")
	_ = exportCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(exportCmd)
}

func runExport(ctx context.Context) error {
	var dataset *publish.Dataset
	for _, ds := range cfg.PublishDatasets() {
		if ds.Name == exportDataset {
			dataset = &ds
			break
		}
	}
	if dataset == nil {
		return fmt.Errorf("dataset %q is not configured", exportDataset)
	}

	workRoot, err := os.MkdirTemp("", "train-list-export-")
	if err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(workRoot)

	root := osfs.New(workRoot)
	if err := root.MkdirAll("repo", 0o755); err != nil {
		return fmt.Errorf("create repo directory: %w", err)
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
		return fmt.Errorf("clone %s: %w", cfg.RepoURL, err)
	}

	loader := history.GitLoader(repo, gitrepo.DefaultRemoteName)
	pointer, blob, err := loader(ctx, *dataset)
	if err != nil {
		return err
	}

	codec, err := traindata.CodecFor(dataset.Ext)
	if err != nil {
		return err
	}
	decoded, err := codec.Decode(blob)
	if err != nil {
		return err
	}

	stage, err := stageExport(workRoot, dataset.Name, &pointer, decoded)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(exportOut, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := cp.Copy(stage, exportOut); err != nil {
		return fmt.Errorf("copy export to %q: %w", exportOut, err)
	}

	logger.Info("dataset exported",
		zap.String("dataset", dataset.Name),
		zap.String("version", pointer.Version),
		zap.String("out", exportOut))
	return nil
}

// stageExport lays out the decoded blob and pointer file in a staging
// directory so the final copy into the output directory is a single step.
func stageExport(workRoot, dataset string, pointer *publish.VersionPointer, decoded []byte) (string, error) {
	stage := filepath.Join(workRoot, "stage")
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}

	dataName := dataset + "." + pointer.Version + ".json"
	if err := os.WriteFile(filepath.Join(stage, dataName), decoded, 0o644); err != nil {
		return "", fmt.Errorf("write decoded blob: %w", err)
	}

	rawPointer, err := json.MarshalIndent(pointer, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode version pointer: %w", err)
	}
	pointerName := dataset + ".version.json"
	if err := os.WriteFile(filepath.Join(stage, pointerName), append(rawPointer, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write version pointer: %w", err)
	}
	return stage, nil
}
