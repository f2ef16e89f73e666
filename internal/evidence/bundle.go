package evidence

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/geogov/internal/receipts"
)

// Archive entry names.
const (
	FilePolicy    = "policy_snapshot.yaml"
	FileReceipts  = "receipts.jsonl"
	FileDecisions = "decisions.csv"
	FileMerkle    = "merkle.txt"
)

// ListDelimiter separates values of list-valued CSV columns.
const ListDelimiter = "|"

// Columns is the fixed CSV header.
var Columns = []string{
	"feature_id", "title", "needs_geo_compliance", "reasoning", "regulations",
	"confidence", "signals", "citations", "matched_rules", "policy_version", "ts",
}

// Bundle is a read-only evidence snapshot. Receipts and Decisions are parallel
// slices in log order.
type Bundle struct {
	ID            uuid.UUID           `json:"id"`
	GeneratedAt   time.Time           `json:"generated_at"`
	Filter        Filter              `json:"filter"`
	Head          uint64              `json:"head"`
	PolicyVersion string              `json:"policy_version"`
	PolicyHash    string              `json:"policy_hash"`
	Policy        []byte              `json:"-"`
	Receipts      []receipts.Receipt  `json:"-"`
	Decisions     []receipts.Decision `json:"-"`
	Root          string              `json:"merkle_root"`
	Count         int                 `json:"count"`
}

// Filename is the archive name used for downloads and blob keys.
func (b *Bundle) Filename() string {
	return b.ID.String() + ".zip"
}

// WriteCSV writes the decision projection.
func (b *Bundle) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}

	for _, d := range b.Decisions {
		sources := make([]string, len(d.Citations))
		for i, c := range d.Citations {
			sources[i] = c.Source
		}

		row := []string{
			d.FeatureID,
			d.Title,
			strconv.FormatBool(d.NeedsCompliance),
			d.Reason,
			strings.Join(d.Regulations, ListDelimiter),
			strconv.FormatFloat(d.Confidence, 'f', receipts.ConfidencePrecision, 64),
			strings.Join(d.Signals, ListDelimiter),
			strings.Join(sources, ListDelimiter),
			strings.Join(d.MatchedRules, ListDelimiter),
			d.PolicyVersion,
			d.Timestamp.UTC().Format(receipts.TimeLayout),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteReceipts writes the filtered receipts as log lines.
func (b *Bundle) WriteReceipts(w io.Writer) error {
	for _, r := range b.Receipts {
		line, err := receipts.MarshalLine(r)
		if err != nil {
			return err
		}
		if _, err := w.Write(line); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bundle) merkleText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "merkle_root: %s\n", b.Root)
	fmt.Fprintf(&sb, "generated_at: %s\n", b.GeneratedAt.UTC().Format(receipts.TimeLayout))
	fmt.Fprintf(&sb, "receipts: %d\n", b.Count)
	fmt.Fprintf(&sb, "head_seq: %d\n", b.Head)
	fmt.Fprintf(&sb, "policy_version: %s\n", b.PolicyVersion)
	fmt.Fprintf(&sb, "policy_hash: %s\n", b.PolicyHash)
	return sb.String()
}

// WriteArchive writes the bundle as a zip. Every entry carries the
// generation time so identical snapshots produce identical archives.
func (b *Bundle) WriteArchive(w io.Writer) error {
	zw := zip.NewWriter(w)

	entries := []struct {
		name  string
		write func(io.Writer) error
	}{
		{FilePolicy, func(w io.Writer) error { _, err := w.Write(b.Policy); return err }},
		{FileReceipts, b.WriteReceipts},
		{FileDecisions, b.WriteCSV},
		{FileMerkle, func(w io.Writer) error { _, err := io.WriteString(w, b.merkleText()); return err }},
	}

	for _, e := range entries {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: b.GeneratedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("%w: create %s: %w", ErrExport, e.name, err)
		}
		if err := e.write(fw); err != nil {
			return fmt.Errorf("%w: write %s: %w", ErrExport, e.name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: close archive: %w", ErrExport, err)
	}
	return nil
}

// Archive renders the zip in memory.
func (b *Bundle) Archive() ([]byte, error) {
	var buf bytes.Buffer
	if err := b.WriteArchive(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
