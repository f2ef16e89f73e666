package evidence

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/geogov/pkg/merkle"
)

func archive(t *testing.T, f *fixture, filter Filter) (*Bundle, []byte) {
	t.Helper()
	b, err := f.exp.Export(context.Background(), filter)
	require.NoError(t, err)
	data, err := b.Archive()
	require.NoError(t, err)
	return b, data
}

// rewrite copies an archive, replacing the named entry with edit's output.
func rewrite(t *testing.T, data []byte, name string, edit func(string) string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, zf := range zr.File {
		rc, err := zf.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()

		if zf.Name == name {
			body = []byte(edit(string(body)))
		}
		w, err := zw.Create(zf.Name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestVerifyArchive(t *testing.T) {
	f := newFixture(t)
	f.write(t, "A", 0)
	f.write(t, "B", time.Minute)
	f.write(t, "A", 2*time.Minute)

	tests := []struct {
		name   string
		filter Filter
		count  int
	}{
		{"all", Filter{}, 3},
		{"filtered", Filter{FeatureID: "A"}, 2},
		{"empty", Filter{FeatureID: "Z"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, data := archive(t, f, tt.filter)

			v, err := VerifyArchive(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			assert.Equal(t, b.Root, v.Root)
			assert.Equal(t, tt.count, v.Count)
			assert.Equal(t, uint64(3), v.Head)
			assert.Equal(t, f.store.Hash(), v.PolicyHash)
			assert.Equal(t, "2025-01", v.PolicyVersion)
		})
	}

	_, data := archive(t, f, Filter{FeatureID: "Z"})
	v, err := VerifyArchive(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, merkle.EmptyRoot, v.Root)
}

func TestVerifyArchiveDetectsTampering(t *testing.T) {
	f := newFixture(t)
	f.write(t, "A", 0)
	f.write(t, "B", time.Minute)
	_, data := archive(t, f, Filter{})

	tests := []struct {
		name  string
		entry string
		edit  func(string) string
		want  string
	}{
		{
			"decision edited", FileReceipts,
			func(s string) string { return strings.Replace(s, "Feature A", "Feature Z", 1) },
			"hash mismatch",
		},
		{
			"receipt dropped", FileReceipts,
			func(s string) string { return s[strings.Index(s, "\n")+1:] },
			"does not match manifest",
		},
		{
			"receipts reordered", FileReceipts,
			func(s string) string {
				lines := strings.SplitAfter(s, "\n")
				return lines[1] + lines[0]
			},
			"out of order",
		},
		{
			"root edited", FileMerkle,
			func(s string) string { return strings.Replace(s, "merkle_root: ", "merkle_root: 00", 1) },
			"does not match manifest",
		},
		{
			"policy edited", FilePolicy,
			func(s string) string { return s + "\n# amended\n" },
			"policy snapshot hash",
		},
		{
			"decision row dropped", FileDecisions,
			func(s string) string { return s[:strings.LastIndex(strings.TrimSuffix(s, "\n"), "\n")+1] },
			"decision rows",
		},
		{
			"manifest truncated", FileMerkle,
			func(string) string { return "merkle_root: x\n" },
			"manifest receipts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := rewrite(t, data, tt.entry, tt.edit)
			_, err := VerifyArchive(bytes.NewReader(tampered), int64(len(tampered)))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrBundleInvalid), err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestVerifyArchiveRejectsNonZip(t *testing.T) {
	data := []byte("not a zip")
	_, err := VerifyArchive(bytes.NewReader(data), int64(len(data)))
	assert.ErrorIs(t, err, ErrBundleInvalid)
}
