package pipeline

import (
	"log/slog"
	"time"

	"github.com/JaimeStill/geogov/internal/judgment"
	"github.com/JaimeStill/geogov/internal/policy"
	"github.com/JaimeStill/geogov/internal/receipts"
	"github.com/JaimeStill/geogov/internal/retrieval"
)

// Options bound the pipeline's concurrency and collaborator calls.
type Options struct {
	Concurrency    int
	TopK           int
	CallTimeout    time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultOptions returns the defaults used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		Concurrency:    4,
		TopK:           6,
		CallTimeout:    8 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.TopK <= 0 {
		o.TopK = d.TopK
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = d.CallTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = d.InitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = d.MaxBackoff
	}
	return o
}

// Runtime bundles the collaborators the pipeline nodes require. It is
// constructed by higher-level composition code from infrastructure.
type Runtime struct {
	Policy    *policy.Store
	Retriever retrieval.Retriever
	Judge     judgment.Judge
	Writer    *receipts.Writer
	Metrics   *Metrics
	Logger    *slog.Logger
	Options   Options
	// Now stamps decisions. Defaults to time.Now.
	Now func() time.Time
}
