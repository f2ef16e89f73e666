package evidence

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/pkg/merkle"
)

// Size bounds applied while reading an archive for verification.
const (
	maxEntrySize   = 256 << 20
	maxArchiveSize = 1 << 30
)

// Verification is the result of checking an archive against its manifest.
type Verification struct {
	Root          string `json:"merkle_root"`
	Count         int    `json:"count"`
	Head          uint64 `json:"head"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
}

// VerifyArchive checks a bundle archive without access to the log. Every
// receipt is re-hashed, the Merkle root is recomputed and compared with
// merkle.txt, the policy snapshot must hash to the recorded policy hash, and
// decisions.csv must have one row per receipt.
func VerifyArchive(r io.ReaderAt, size int64) (Verification, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: open archive: %w", ErrBundleInvalid, err)
	}

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		data, err := readEntry(f)
		if err != nil {
			return Verification{}, fmt.Errorf("%w: read %s: %w", ErrBundleInvalid, f.Name, err)
		}
		files[f.Name] = data
	}
	for _, name := range []string{FilePolicy, FileReceipts, FileDecisions, FileMerkle} {
		if _, ok := files[name]; !ok {
			return Verification{}, fmt.Errorf("%w: missing %s", ErrBundleInvalid, name)
		}
	}

	manifest, err := parseManifest(files[FileMerkle])
	if err != nil {
		return Verification{}, err
	}

	hashes, err := receiptHashes(files[FileReceipts], manifest.Head)
	if err != nil {
		return Verification{}, err
	}

	root, err := merkle.Root(hashes)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: %w", ErrBundleInvalid, err)
	}
	if root != manifest.Root {
		return Verification{}, fmt.Errorf("%w: merkle root %s does not match manifest %s", ErrBundleInvalid, root, manifest.Root)
	}
	if len(hashes) != manifest.Count {
		return Verification{}, fmt.Errorf("%w: %d receipts but manifest lists %d", ErrBundleInvalid, len(hashes), manifest.Count)
	}

	store, err := policy.Parse(files[FilePolicy], manifest.PolicyVersion)
	if err != nil {
		return Verification{}, fmt.Errorf("%w: policy snapshot: %w", ErrBundleInvalid, err)
	}
	if store.Hash() != manifest.PolicyHash {
		return Verification{}, fmt.Errorf("%w: policy snapshot hash %s does not match manifest %s", ErrBundleInvalid, store.Hash(), manifest.PolicyHash)
	}

	rows, err := csv.NewReader(bytes.NewReader(files[FileDecisions])).ReadAll()
	if err != nil {
		return Verification{}, fmt.Errorf("%w: decisions: %w", ErrBundleInvalid, err)
	}
	if len(rows) != len(hashes)+1 {
		return Verification{}, fmt.Errorf("%w: %d decision rows for %d receipts", ErrBundleInvalid, len(rows)-1, len(hashes))
	}

	return manifest, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxEntrySize {
		return nil, fmt.Errorf("entry exceeds %d bytes", maxEntrySize)
	}
	return data, nil
}

func parseManifest(data []byte) (Verification, error) {
	fields := make(map[string]string)
	for line := range strings.Lines(string(data)) {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ": ")
		if ok {
			fields[key] = value
		}
	}

	var v Verification
	var err error
	v.Root = fields["merkle_root"]
	v.PolicyVersion = fields["policy_version"]
	v.PolicyHash = fields["policy_hash"]
	if v.Count, err = strconv.Atoi(fields["receipts"]); err != nil {
		return Verification{}, fmt.Errorf("%w: manifest receipts: %w", ErrBundleInvalid, err)
	}
	if v.Head, err = strconv.ParseUint(fields["head_seq"], 10, 64); err != nil {
		return Verification{}, fmt.Errorf("%w: manifest head_seq: %w", ErrBundleInvalid, err)
	}
	if v.Root == "" || v.PolicyHash == "" {
		return Verification{}, fmt.Errorf("%w: manifest incomplete", ErrBundleInvalid)
	}
	return v, nil
}

// Receipts in a filtered bundle are not contiguous, so only increasing
// order and the head bound are checked.
func receiptHashes(data []byte, head uint64) ([]string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxEntrySize)

	var hashes []string
	var prev uint64
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) == 0 {
			continue
		}
		rec, err := receipts.ParseLine(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: receipt line %d: %w", ErrBundleInvalid, len(hashes)+1, err)
		}
		if rec.Seq <= prev || rec.Seq > head {
			return nil, fmt.Errorf("%w: seq %d out of order", ErrBundleInvalid, rec.Seq)
		}
		if got := receipts.Hash(rec.Decision); got != rec.Hash {
			return nil, fmt.Errorf("%w: seq %d hash mismatch", ErrBundleInvalid, rec.Seq)
		}
		prev = rec.Seq
		hashes = append(hashes, rec.Hash)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: receipts: %w", ErrBundleInvalid, err)
	}
	return hashes, nil
}
