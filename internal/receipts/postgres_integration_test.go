//go:build integration

package receipts_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/JaimeStill/geogov/internal/receipts"
)

const receiptsSchema = `
CREATE TABLE receipts (
	seq BIGINT PRIMARY KEY CHECK (seq > 0),
	hash TEXT NOT NULL,
	feature_id TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	decision BYTEA NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

type PostgresLogSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sql.DB
	log       *receipts.PostgresLog
}

func TestPostgresLogSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLogSuite))
}

func (s *PostgresLogSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:17-alpine",
		tcpostgres.WithDatabase("geogov"),
		tcpostgres.WithUsername("geogov"),
		tcpostgres.WithPassword("geogov"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = sql.Open("pgx", dsn)
	s.Require().NoError(err)

	_, err = s.db.ExecContext(ctx, receiptsSchema)
	s.Require().NoError(err)

	s.log = receipts.NewPostgresLog(s.db, discard())
}

func (s *PostgresLogSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresLogSuite) SetupTest() {
	_, err := s.db.ExecContext(context.Background(), "TRUNCATE receipts")
	s.Require().NoError(err)
}

func (s *PostgresLogSuite) TestConcurrentAppendsAcrossWriters() {
	ctx := context.Background()

	// separate writers share only the database, like separate processes
	const writers = 20
	var wg sync.WaitGroup
	for i := range writers {
		wg.Go(func() {
			w := receipts.NewWriter(s.log, discard())
			d := sampleDecision()
			d.FeatureID = fmt.Sprintf("feat-%02d", i)
			_, err := w.Write(ctx, &d)
			s.NoError(err)
		})
	}
	wg.Wait()

	report, err := receipts.Verify(ctx, s.log)
	s.Require().NoError(err)
	s.Equal(uint64(writers), report.Head)
	s.Equal(writers, report.Entries)
}

func (s *PostgresLogSuite) TestRangePreservesCanonicalBytes() {
	ctx := context.Background()
	e := entry(s.T(), "feat-bytes")

	rec, err := s.log.Append(ctx, e)
	s.Require().NoError(err)
	s.Equal(uint64(1), rec.Seq)

	recs, err := s.log.Range(ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(e.Canonical, []byte(recs[0].Decision))
	s.Equal(e.Hash, recs[0].Hash)
}
