package service

import (
	"context"

	"github.com/JaimeStill/geogov/internal/judgment"
)

// Health describes what the service is currently running with.
type Health struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	PolicyVersion string `json:"policy_version"`
	PolicyHash    string `json:"policy_hash"`
	Rules         int    `json:"rules"`
	ReceiptHead   uint64 `json:"receipt_head"`
	IndexChunks   int    `json:"index_chunks"`
	IndexDigest   string `json:"index_digest"`
	Judgment      string `json:"judgment"`
}

// Health reports policy identity, the receipt head and index size. Status is
// "degraded" when the receipt log cannot report its head.
func (s *Service) Health(ctx context.Context) Health {
	h := Health{
		Status:        "ok",
		Version:       s.version,
		PolicyVersion: s.Policy.Version(),
		PolicyHash:    s.Policy.Hash(),
		Rules:         s.Policy.Len(),
		IndexChunks:   s.Index.Len(),
		IndexDigest:   s.Index.Digest(),
		Judgment:      "ensemble",
	}
	if _, ok := s.Judge.(judgment.Disabled); ok {
		h.Judgment = "disabled"
	}

	head, err := s.Writer.Head(ctx)
	if err != nil {
		s.logger.Warn("receipt head unavailable", "error", err)
		h.Status = "degraded"
	}
	h.ReceiptHead = head
	return h
}
