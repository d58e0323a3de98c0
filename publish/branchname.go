package publish

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Branch and file naming convention, per logical dataset:
//
//	data branch    data_<dataset>     holds data/<dataset>.<stamp>.<ext>
//	version branch version_<dataset>  holds version/<dataset>.version.json
//	backup branch  backup_<dataset>_<partition>  append-only arrays by date
//
// Dataset names must not contain the underscore separator, so every branch
// name decodes unambiguously.

const (
	branchSep        = "_"
	dataBranchRole   = "data"
	versionBranchRole = "version"
	backupBranchRole = "backup"

	versionStampLayout = "20060102150405"
)

// ErrMalformedBranchName is returned when a branch name does not follow the
// dataset naming convention.
var ErrMalformedBranchName = errors.New("malformed branch name")

// ErrMalformedBlobName is returned when a blob file name does not follow the
// <dataset>.<stamp>.<ext> convention.
var ErrMalformedBlobName = errors.New("malformed blob file name")

// Role classifies a dataset branch.
type Role int

const (
	// RoleData marks a branch holding immutable timestamped blobs.
	RoleData Role = iota

	// RoleVersion marks a branch holding the single version pointer file.
	RoleVersion

	// RoleBackup marks an append-only branch partitioned by date.
	RoleBackup
)

// String returns a human-readable representation of the role.
func (r Role) String() string {
	switch r {
	case RoleData:
		return dataBranchRole
	case RoleVersion:
		return versionBranchRole
	case RoleBackup:
		return backupBranchRole
	default:
		return "unknown"
	}
}

// BranchName is a decoded dataset branch name.
type BranchName struct {
	Role    Role
	Dataset string

	// Partition is set for backup branches only (e.g. "raw-data" or a date).
	Partition string
}

// ValidateDatasetName rejects dataset names that would make branch names
// ambiguous or invalid as git refs.
func ValidateDatasetName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: dataset name is empty", ErrMalformedBranchName)
	}
	if strings.Contains(name, branchSep) {
		return fmt.Errorf("%w: dataset name %q contains %q", ErrMalformedBranchName, name, branchSep)
	}
	if strings.ContainsAny(name, "./ \t") {
		return fmt.Errorf("%w: dataset name %q contains invalid characters", ErrMalformedBranchName, name)
	}
	return nil
}

// DataBranch returns the data branch name for a dataset.
func DataBranch(dataset string) string {
	return dataBranchRole + branchSep + dataset
}

// VersionBranch returns the version branch name for a dataset.
func VersionBranch(dataset string) string {
	return versionBranchRole + branchSep + dataset
}

// BackupBranch returns the append-only branch name for a dataset partition.
func BackupBranch(dataset, partition string) string {
	return backupBranchRole + branchSep + dataset + branchSep + partition
}

// ParseBranch decodes a branch name into its role, dataset, and partition.
func ParseBranch(name string) (BranchName, error) {
	role, rest, ok := strings.Cut(name, branchSep)
	if !ok || rest == "" {
		return BranchName{}, fmt.Errorf("%w: %q", ErrMalformedBranchName, name)
	}

	switch role {
	case dataBranchRole:
		if err := ValidateDatasetName(rest); err != nil {
			return BranchName{}, err
		}
		return BranchName{Role: RoleData, Dataset: rest}, nil

	case versionBranchRole:
		if err := ValidateDatasetName(rest); err != nil {
			return BranchName{}, err
		}
		return BranchName{Role: RoleVersion, Dataset: rest}, nil

	case backupBranchRole:
		dataset, partition, ok := strings.Cut(rest, branchSep)
		if !ok || partition == "" {
			return BranchName{}, fmt.Errorf("%w: backup branch %q lacks a partition", ErrMalformedBranchName, name)
		}
		if err := ValidateDatasetName(dataset); err != nil {
			return BranchName{}, err
		}
		return BranchName{Role: RoleBackup, Dataset: dataset, Partition: partition}, nil

	default:
		return BranchName{}, fmt.Errorf("%w: unknown role in %q", ErrMalformedBranchName, name)
	}
}

// VersionStamp formats a time as the version identifier used in blob names
// and version pointers.
func VersionStamp(t time.Time) string {
	return t.Format(versionStampLayout)
}

// ParseVersionStamp decodes a version identifier back into a time.
func ParseVersionStamp(s string) (time.Time, error) {
	t, err := time.Parse(versionStampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: bad version stamp %q", ErrMalformedBlobName, s)
	}
	return t, nil
}

// BlobFileName returns the immutable blob file name for one publish.
func BlobFileName(dataset, version, ext string) string {
	return dataset + "." + version + "." + ext
}

// BlobPath returns the repository path of a blob file on the data branch.
func BlobPath(fileName string) string {
	return "data/" + fileName
}

// VersionFilePath returns the repository path of the version pointer file on
// the version branch.
func VersionFilePath(dataset string) string {
	return "version/" + dataset + ".version.json"
}

// ParseBlobFileName decodes a blob file name into dataset, version, and
// extension.
func ParseBlobFileName(name string) (dataset, version, ext string, err error) {
	parts := strings.SplitN(name, ".", 3)
	if len(parts) != 3 || parts[0] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("%w: %q", ErrMalformedBlobName, name)
	}
	if _, err := ParseVersionStamp(parts[1]); err != nil {
		return "", "", "", err
	}
	return parts[0], parts[1], parts[2], nil
}
