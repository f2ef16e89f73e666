package receipts

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/geogov/pkg/query"
	"github.com/JaimeStill/geogov/pkg/repository"
)

// advisoryLockKey serializes appends across processes sharing one database.
const advisoryLockKey int64 = 0x67656f676f76

var receiptProjection = query.NewProjectionMap("receipts", "r").
	Project("seq", "Seq").
	Project("hash", "Hash").
	Project("decision", "Decision")

// PostgresLog stores receipts in the receipts table. The canonical decision
// is kept as BYTEA so its bytes survive unchanged.
type PostgresLog struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresLog returns a log backed by db. The receipts table must exist (see cmd/migrate).
func NewPostgresLog(db *sql.DB, logger *slog.Logger) *PostgresLog {
	return &PostgresLog{
		db:     db,
		logger: logger.With("system", "receipts", "log", "postgres"),
	}
}

func (l *PostgresLog) Append(ctx context.Context, e Entry) (Receipt, error) {
	rec, err := repository.WithTx(ctx, l.db, nil, func(tx *sql.Tx) (Receipt, error) {
		if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
			return Receipt{}, fmt.Errorf("acquire append lock: %w", err)
		}

		next, err := repository.One(ctx, tx, scanSeq, "SELECT COALESCE(MAX(seq), 0) + 1 FROM receipts")
		if err != nil {
			return Receipt{}, fmt.Errorf("next seq: %w", err)
		}

		err = repository.ExecOne(ctx, tx,
			`INSERT INTO receipts (seq, hash, feature_id, ts, decision) VALUES ($1, $2, $3, $4, $5)`,
			int64(next), e.Hash, e.FeatureID, e.Timestamp.UTC(), e.Canonical,
		)
		if err != nil {
			return Receipt{}, repository.MapError(err, ErrAppend, ErrSeqConflict)
		}

		return Receipt{Seq: next, Hash: e.Hash, Decision: e.Canonical}, nil
	})
	if err != nil {
		if repository.Transient(err) {
			l.logger.WarnContext(ctx, "transient append failure", "error", err)
		}
		return Receipt{}, fmt.Errorf("%w: %w", ErrAppend, err)
	}
	return rec, nil
}

func (l *PostgresLog) Head(ctx context.Context) (uint64, error) {
	head, err := repository.One(ctx, l.db, scanSeq, "SELECT COALESCE(MAX(seq), 0) FROM receipts")
	if err != nil {
		return 0, fmt.Errorf("query receipt head: %w", err)
	}
	return head, nil
}

func (l *PostgresLog) Range(ctx context.Context, upTo uint64) ([]Receipt, error) {
	stmt, args := query.NewBuilder(receiptProjection, query.SortField{Field: "Seq"}).
		WhereAtMost("Seq", int64(upTo)).
		Build()

	recs, err := repository.Many(ctx, l.db, scanReceipt, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	return recs, nil
}

// Close is a no-op; the connection pool belongs to the database system.
func (l *PostgresLog) Close() error { return nil }

func scanSeq(s repository.Scanner) (uint64, error) {
	var n int64
	if err := s.Scan(&n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

func scanReceipt(s repository.Scanner) (Receipt, error) {
	var (
		seq      int64
		rec      Receipt
		decision []byte
	)
	if err := s.Scan(&seq, &rec.Hash, &decision); err != nil {
		return Receipt{}, err
	}
	rec.Seq = uint64(seq)
	rec.Decision = decision
	return rec, nil
}
