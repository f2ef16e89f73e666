package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/geogov/internal/pipeline"
)

const (
	EnvPolicyPath    = "GEOGOV_POLICY_PATH"
	EnvPolicyVersion = "GEOGOV_POLICY_VERSION"

	EnvReceiptsBackend = "GEOGOV_RECEIPTS_BACKEND"
	EnvReceiptsPath    = "GEOGOV_RECEIPTS_PATH"

	EnvRedisURL       = "GEOGOV_REDIS_URL"
	EnvRedisNamespace = "GEOGOV_REDIS_NAMESPACE"

	EnvRetrievalCorpusPath = "GEOGOV_RETRIEVAL_CORPUS_PATH"
	EnvRetrievalTopK       = "GEOGOV_RETRIEVAL_TOP_K"
	EnvRetrievalCacheTTL   = "GEOGOV_RETRIEVAL_CACHE_TTL"

	EnvPipelineConcurrency    = "GEOGOV_PIPELINE_CONCURRENCY"
	EnvPipelineCallTimeout    = "GEOGOV_PIPELINE_CALL_TIMEOUT"
	EnvPipelineMaxRetries     = "GEOGOV_PIPELINE_MAX_RETRIES"
	EnvPipelineInitialBackoff = "GEOGOV_PIPELINE_INITIAL_BACKOFF"
	EnvPipelineMaxBackoff     = "GEOGOV_PIPELINE_MAX_BACKOFF"

	EnvJudgmentEnabled = "GEOGOV_JUDGMENT_ENABLED"
)

// Receipt log backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// PolicyConfig locates the rules file. Version is used when the file
// declares none.
type PolicyConfig struct {
	Path    string `toml:"path"`
	Version string `toml:"version"`
}

func (c *PolicyConfig) finalize() error {
	if c.Path == "" {
		c.Path = "rules.yaml"
	}
	if c.Version == "" {
		c.Version = "unversioned"
	}
	envString(EnvPolicyPath, &c.Path)
	envString(EnvPolicyVersion, &c.Version)
	return nil
}

func (c *PolicyConfig) merge(o *PolicyConfig) {
	mergeString(&c.Path, o.Path)
	mergeString(&c.Version, o.Version)
}

// ReceiptsConfig selects the receipt log backend. Path applies to the file backend.
type ReceiptsConfig struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

func (c *ReceiptsConfig) finalize() error {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Path == "" {
		c.Path = "data/receipts.jsonl"
	}
	envString(EnvReceiptsBackend, &c.Backend)
	envString(EnvReceiptsPath, &c.Path)

	switch c.Backend {
	case BackendFile, BackendPostgres:
		return nil
	default:
		return fmt.Errorf("invalid backend %q: want %s or %s", c.Backend, BackendFile, BackendPostgres)
	}
}

func (c *ReceiptsConfig) merge(o *ReceiptsConfig) {
	mergeString(&c.Backend, o.Backend)
	mergeString(&c.Path, o.Path)
}

// RedisConfig enables the retrieval cache when URL is set.
type RedisConfig struct {
	URL       string `toml:"url"`
	Namespace string `toml:"namespace"`
}

// Enabled reports whether a Redis URL is configured.
func (c *RedisConfig) Enabled() bool { return c.URL != "" }

func (c *RedisConfig) finalize() error {
	envString(EnvRedisURL, &c.URL)
	envString(EnvRedisNamespace, &c.Namespace)
	if c.Namespace == "" {
		c.Namespace = "default"
	}
	if c.URL == "" {
		return nil
	}
	u, err := url.Parse(c.URL)
	if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return fmt.Errorf("invalid url: want redis:// or rediss://")
	}
	return nil
}

func (c *RedisConfig) merge(o *RedisConfig) {
	mergeString(&c.URL, o.URL)
	mergeString(&c.Namespace, o.Namespace)
}

// RetrievalConfig locates the regulatory corpus and bounds lookups.
type RetrievalConfig struct {
	CorpusPath string `toml:"corpus_path"`
	TopK       int    `toml:"top_k"`
	CacheTTL   string `toml:"cache_ttl"`
}

// CacheTTLDuration returns CacheTTL as a time.Duration.
func (c *RetrievalConfig) CacheTTLDuration() time.Duration { return duration(c.CacheTTL) }

func (c *RetrievalConfig) finalize() error {
	if c.CorpusPath == "" {
		c.CorpusPath = "corpus.yaml"
	}
	if c.TopK == 0 {
		c.TopK = 6
	}
	if c.CacheTTL == "" {
		c.CacheTTL = "1h"
	}
	envString(EnvRetrievalCorpusPath, &c.CorpusPath)
	envInt(EnvRetrievalTopK, &c.TopK)
	envString(EnvRetrievalCacheTTL, &c.CacheTTL)

	if c.TopK < 1 {
		return fmt.Errorf("invalid top_k: %d", c.TopK)
	}
	return validateDurations(field{"cache_ttl", c.CacheTTL})
}

func (c *RetrievalConfig) merge(o *RetrievalConfig) {
	mergeString(&c.CorpusPath, o.CorpusPath)
	mergeInt(&c.TopK, o.TopK)
	mergeString(&c.CacheTTL, o.CacheTTL)
}

// PipelineConfig bounds batch concurrency and collaborator calls.
type PipelineConfig struct {
	Concurrency    int    `toml:"concurrency"`
	CallTimeout    string `toml:"call_timeout"`
	// MaxRetries of 0 takes the default; -1 disables retries.
	MaxRetries     int    `toml:"max_retries"`
	InitialBackoff string `toml:"initial_backoff"`
	MaxBackoff     string `toml:"max_backoff"`
}

func (c *PipelineConfig) finalize() error {
	d := pipeline.DefaultOptions()
	if c.Concurrency == 0 {
		c.Concurrency = d.Concurrency
	}
	if c.CallTimeout == "" {
		c.CallTimeout = d.CallTimeout.String()
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.InitialBackoff == "" {
		c.InitialBackoff = d.InitialBackoff.String()
	}
	if c.MaxBackoff == "" {
		c.MaxBackoff = d.MaxBackoff.String()
	}
	envInt(EnvPipelineConcurrency, &c.Concurrency)
	envString(EnvPipelineCallTimeout, &c.CallTimeout)
	envInt(EnvPipelineMaxRetries, &c.MaxRetries)
	envString(EnvPipelineInitialBackoff, &c.InitialBackoff)
	envString(EnvPipelineMaxBackoff, &c.MaxBackoff)

	if c.Concurrency < 1 {
		return fmt.Errorf("invalid concurrency: %d", c.Concurrency)
	}
	if c.MaxRetries < -1 {
		return fmt.Errorf("invalid max_retries: %d", c.MaxRetries)
	}
	if err := validateDurations(
		field{"call_timeout", c.CallTimeout},
		field{"initial_backoff", c.InitialBackoff},
		field{"max_backoff", c.MaxBackoff},
	); err != nil {
		return err
	}
	if duration(c.InitialBackoff) > duration(c.MaxBackoff) {
		return fmt.Errorf("initial_backoff %s exceeds max_backoff %s", c.InitialBackoff, c.MaxBackoff)
	}
	return nil
}

func (c *PipelineConfig) merge(o *PipelineConfig) {
	mergeInt(&c.Concurrency, o.Concurrency)
	mergeString(&c.CallTimeout, o.CallTimeout)
	mergeInt(&c.MaxRetries, o.MaxRetries)
	mergeString(&c.InitialBackoff, o.InitialBackoff)
	mergeString(&c.MaxBackoff, o.MaxBackoff)
}

// JudgmentConfig switches the LLM judgment ensemble on. When disabled the
// pipeline runs on extracted signals and rules alone.
type JudgmentConfig struct {
	Enabled bool `toml:"enabled"`
}

// Options combines pipeline and retrieval settings into pipeline.Options.
func (c *Config) Options() pipeline.Options {
	return pipeline.Options{
		Concurrency:    c.Pipeline.Concurrency,
		TopK:           c.Retrieval.TopK,
		CallTimeout:    duration(c.Pipeline.CallTimeout),
		MaxRetries:     c.Pipeline.MaxRetries,
		InitialBackoff: duration(c.Pipeline.InitialBackoff),
		MaxBackoff:     duration(c.Pipeline.MaxBackoff),
	}
}
