package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aliawhy/train-list/gitrepo"
	"github.com/aliawhy/train-list/publish"
)

// GitLoader reads the latest published blob of a dataset straight from its
// repository: it checks out the version branch, follows the pointer file, and
// reads the named blob from the data branch.
func GitLoader(repo *gitrepo.Repo, remote string) Loader {
	return func(ctx context.Context, dataset publish.Dataset) (publish.VersionPointer, []byte, error) {
		var pointer publish.VersionPointer

		versionBranch := publish.VersionBranch(dataset.Name)
		if err := repo.CheckoutRemoteBranch(ctx, remote, versionBranch, versionBranch); err != nil {
			return pointer, nil, fmt.Errorf("checkout %q: %w", versionBranch, err)
		}

		rawPointer, err := repo.ReadFile(publish.VersionFilePath(dataset.Name))
		if err != nil {
			return pointer, nil, fmt.Errorf("read version pointer: %w", err)
		}
		if rawPointer == nil {
			return pointer, nil, fmt.Errorf("dataset %q has no published version", dataset.Name)
		}
		if err := json.Unmarshal(rawPointer, &pointer); err != nil {
			return pointer, nil, fmt.Errorf("decode version pointer: %w", err)
		}

		dataBranch := publish.DataBranch(dataset.Name)
		if err := repo.CheckoutRemoteBranch(ctx, remote, dataBranch, dataBranch); err != nil {
			return pointer, nil, fmt.Errorf("checkout %q: %w", dataBranch, err)
		}

		blob, err := repo.ReadFile(publish.BlobPath(pointer.FileName))
		if err != nil {
			return pointer, nil, fmt.Errorf("read blob %q: %w", pointer.FileName, err)
		}
		if blob == nil {
			return pointer, nil, fmt.Errorf("blob %q named by the version pointer is missing", pointer.FileName)
		}
		return pointer, blob, nil
	}
}
