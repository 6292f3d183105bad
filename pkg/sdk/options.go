package billsearch

import (
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures Open and BuildIndex.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	documents   string
	artifactDir string

	embedder   Embedder
	embedderID string
	localDims  int

	generator        Generator
	generatorTimeout time.Duration
	systemPrompt     string
	execStyle        bool

	defaultK int
	maxK     int

	batchSize   int
	concurrency int

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithDocuments sets the document table (.csv or .parquet).
func WithDocuments(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.documents = path
	})
}

// WithArtifact sets the directory holding manifest.json and vectors.bin.
func WithArtifact(dir string) Option {
	return optionFunc(func(c *clientConfig) {
		c.artifactDir = dir
	})
}

// WithEmbedder sets the embedding provider. identifier names the model and must be
// the same when building and when opening an index.
func WithEmbedder(e Embedder, identifier string) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = e
		c.embedderID = identifier
		c.localDims = 0
	})
}

// WithLocalEmbedder uses the built-in feature hashing embedder. No network calls;
// suited for tests and offline use.
func WithLocalEmbedder(dims int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embedder = nil
		c.embedderID = ""
		c.localDims = dims
	})
}

// WithGenerator sets the answer generator. Required for Ask.
func WithGenerator(g Generator) Option {
	return optionFunc(func(c *clientConfig) {
		c.generator = g
	})
}

// WithGeneratorTimeout bounds each generation call. Default: 30s.
func WithGeneratorTimeout(d time.Duration) Option {
	return optionFunc(func(c *clientConfig) {
		c.generatorTimeout = d
	})
}

// WithSystemPrompt replaces the default answer prompt.
func WithSystemPrompt(p string) Option {
	return optionFunc(func(c *clientConfig) {
		c.systemPrompt = p
	})
}

// WithExecStyle post-processes answers: filler advice removed, exactly two next
// steps, and a closing "Not legal advice." disclaimer. Off by default.
func WithExecStyle(on bool) Option {
	return optionFunc(func(c *clientConfig) {
		c.execStyle = on
	})
}

// WithLimits sets the default and maximum number of hits.
// Defaults: 8 and 50.
func WithLimits(defaultK, maxK int) Option {
	return optionFunc(func(c *clientConfig) {
		c.defaultK = defaultK
		c.maxK = maxK
	})
}

// WithBuildParallelism sets the embedding batch size and concurrency used by BuildIndex.
// Defaults: 64 and 4.
func WithBuildParallelism(batchSize, concurrency int) Option {
	return optionFunc(func(c *clientConfig) {
		c.batchSize = batchSize
		c.concurrency = concurrency
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

// SearchOption tunes a single Search or Ask call.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK  int
	mode  SearchMode
	state string
}

// TopK sets the number of hits. Values above the maximum are clamped.
func TopK(k int) SearchOption {
	return func(c *searchConfig) { c.topK = k }
}

// Mode selects semantic, keyword or hybrid retrieval. Default: semantic.
func Mode(m SearchMode) SearchOption {
	return func(c *searchConfig) { c.mode = m }
}

// InState restricts hits to one jurisdiction (name or two-letter code).
func InState(state string) SearchOption {
	return func(c *searchConfig) { c.state = state }
}
