package publish

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchNameRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		want BranchName
	}{
		{DataBranch("gdcj-train-detail"), BranchName{Role: RoleData, Dataset: "gdcj-train-detail"}},
		{VersionBranch("gdcj-train-detail"), BranchName{Role: RoleVersion, Dataset: "gdcj-train-detail"}},
		{
			BackupBranch("gdcj-train-detail", "raw-data"),
			BranchName{Role: RoleBackup, Dataset: "gdcj-train-detail", Partition: "raw-data"},
		},
		{
			BackupBranch("gdcj-train-detail", "2024-05-01"),
			BranchName{Role: RoleBackup, Dataset: "gdcj-train-detail", Partition: "2024-05-01"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseBranch(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseBranch_Malformed(t *testing.T) {
	for _, name := range []string{
		"",
		"data",
		"data_",
		"feature_x_y_z",
		"backup_gdcj",
		"backup_gdcj_",
		"main",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseBranch(name)
			require.ErrorIs(t, err, ErrMalformedBranchName)
		})
	}
}

func TestValidateDatasetName(t *testing.T) {
	require.NoError(t, ValidateDatasetName("gdcj-train-detail"))
	require.Error(t, ValidateDatasetName(""))
	require.Error(t, ValidateDatasetName("with_underscore"))
	require.Error(t, ValidateDatasetName("with/slash"))
	require.Error(t, ValidateDatasetName("with.dot"))
}

func TestVersionStampRoundTrip(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 34, 56, 0, time.UTC)

	stamp := VersionStamp(at)
	require.Equal(t, "20240501123456", stamp)

	parsed, err := ParseVersionStamp(stamp)
	require.NoError(t, err)
	assert.True(t, at.Equal(parsed))

	_, err = ParseVersionStamp("not-a-stamp")
	require.ErrorIs(t, err, ErrMalformedBlobName)
}

func TestBlobFileNameRoundTrip(t *testing.T) {
	name := BlobFileName("gdcj-train-detail", "20240501123456", "json.gz")
	require.Equal(t, "gdcj-train-detail.20240501123456.json.gz", name)
	require.Equal(t, "data/"+name, BlobPath(name))

	dataset, version, ext, err := ParseBlobFileName(name)
	require.NoError(t, err)
	assert.Equal(t, "gdcj-train-detail", dataset)
	assert.Equal(t, "20240501123456", version)
	assert.Equal(t, "json.gz", ext)

	_, _, _, err = ParseBlobFileName("nodots")
	require.ErrorIs(t, err, ErrMalformedBlobName)

	_, _, _, err = ParseBlobFileName("ds.badstamp.json")
	require.ErrorIs(t, err, ErrMalformedBlobName)
}

func TestVersionFilePath(t *testing.T) {
	assert.Equal(t, "version/gdcj-train-detail.version.json", VersionFilePath("gdcj-train-detail"))
}
