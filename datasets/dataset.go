package datasets

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlpipes/seqdata/tokenizers"
)

// Loader is the capability a concrete dataset must provide: per-split
// loading and evaluation. The pipeline drives everything else.
type Loader interface {
	// Name identifies the dataset. It keys the registry, the cache
	// fingerprint and the default data directory.
	Name() string

	// LoadDataSingleSplit loads one split ("train", "dev", "test"). The
	// result must be deterministic given the rng, which is the only source
	// of randomness a loader may use.
	LoadDataSingleSplit(split string, rng *rand.Rand) ([]InputExample, error)

	// EvaluateDataset runs the model over the built dataset and returns a
	// metric-name to score mapping. macro selects macro- over
	// micro-averaging. Implementations must be pure functions of the model
	// outputs and the gold examples, side effects limited to logging.
	EvaluateDataset(d *Dataset, model Generator, batchSize int, macro bool) (map[string]float64, error)
}

// SchemaLoader is the optional pre-load hook. When a concrete dataset
// implements it, LoadSchema runs before any split is parsed so it can
// populate auxiliary lookup state such as label vocabularies. The default
// is a no-op.
type SchemaLoader interface {
	LoadSchema() error
}

// dataNamer lets a concrete dataset store its files under a directory name
// different from its dataset name.
type dataNamer interface {
	DataName() string
}

// taskDescriber overrides the multitask prefix; the default is the dataset
// name.
type taskDescriber interface {
	TaskDescriptor() string
}

// Options configures one dataset instance. Config holds what is shared
// across the experiment; Options holds what varies per instance.
type Options struct {
	Tokenizer       tokenizers.Tokenizer
	MaxInputLength  int
	MaxOutputLength int

	// Mode is a comma-separated list of split names, loaded and
	// concatenated in the given order. Empty means "train".
	Mode string

	// OverwriteCache forces recomputation even when a cache file exists.
	OverwriteCache bool

	// TrainSubset in (0, 1] truncates the visible dataset size to
	// round(TrainSubset * len(examples)). Zero means 1 (use everything).
	TrainSubset float64

	// Seed drives both the loader rng and the index shuffle. The two draw
	// from independent generators seeded with the same value, so the
	// shuffle permutation is identical whether examples came from the
	// loader or from cache.
	Seed int64

	// Shuffle permutes the logical index order.
	Shuffle bool

	// IsEval marks the instance as evaluation-side; carried for callers.
	IsEval bool

	// Rendezvous coordinates multi-process cache population. Nil means
	// single process.
	Rendezvous Rendezvous
}

// Dataset owns the parallel example/feature sequences, the logical index
// permutation and the effective size. All of it is computed once in New and
// immutable afterwards; the instance lives for one training or evaluation
// run.
type Dataset struct {
	impl Loader
	cfg  *Config
	opts Options

	inputFormat  InputFormat
	outputFormat OutputFormat

	examples []InputExample
	features []InputFeature

	// indices maps logical position to physical slot; effectiveSize <=
	// len(indices) truncates the visible length for subset training.
	indices       []int
	effectiveSize int
}

// New builds a dataset: it validates the configuration, reuses the cached
// (examples, features) pair when the fingerprint matches, and otherwise
// loads, compiles and persists. In a rendezvous group only the leader runs
// the expensive path; followers block until the artifact exists.
//
// The caller's config is never written to: defaults are resolved on a
// private copy, so one Config value may safely drive concurrent builds.
func New(impl Loader, cfg *Config, opts Options) (*Dataset, error) {
	if impl == nil {
		return nil, errors.New("nil dataset implementation")
	}
	if cfg == nil {
		return nil, fmt.Errorf("dataset %s: nil config", impl.Name())
	}
	resolved := *cfg
	cfg = &resolved
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", impl.Name(), err)
	}
	if opts.Tokenizer == nil {
		return nil, fmt.Errorf("dataset %s: no tokenizer", impl.Name())
	}
	if opts.MaxInputLength <= 0 || opts.MaxOutputLength <= 0 {
		return nil, fmt.Errorf("dataset %s: sequence lengths must be positive", impl.Name())
	}
	if opts.Mode == "" {
		opts.Mode = "train"
	}
	if opts.TrainSubset == 0 {
		opts.TrainSubset = 1
	}
	if opts.TrainSubset < 0 || opts.TrainSubset > 1 {
		return nil, fmt.Errorf("dataset %s: train subset %v outside (0, 1]", impl.Name(), opts.TrainSubset)
	}

	d := &Dataset{impl: impl, cfg: cfg, opts: opts}

	var err error
	if d.inputFormat, err = lookupInputFormat(cfg.InputFormat); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", impl.Name(), err)
	}
	if d.outputFormat, err = lookupOutputFormat(cfg.OutputFormat); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", impl.Name(), err)
	}

	// Register before feature compilation so formatters can resolve the
	// owner through example handles.
	registerDataset(d)

	key := CacheKey{
		Dataset:         impl.Name(),
		Mode:            opts.Mode,
		Tokenizer:       opts.Tokenizer.Name(),
		MaxInputLength:  opts.MaxInputLength,
		MaxOutputLength: opts.MaxOutputLength,
		Experiment:      cfg.Experiment,
		Multitask:       cfg.Multitask,
	}
	dir := d.DataDir()

	err = leaderFirst(context.Background(), opts.Rendezvous, func(leader bool) error {
		return d.populate(key, dir, leader)
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", impl.Name(), err)
	}

	// Logical index permutation, seeded independently of the loader rng so
	// cache hits and misses shuffle identically.
	d.indices = make([]int, len(d.examples))
	for i := range d.indices {
		d.indices[i] = i
	}
	if opts.Shuffle {
		shuffleRNG := rand.New(rand.NewSource(opts.Seed))
		shuffleRNG.Shuffle(len(d.indices), func(i, j int) {
			d.indices[i], d.indices[j] = d.indices[j], d.indices[i]
		})
	}

	d.effectiveSize = int(math.Round(opts.TrainSubset * float64(len(d.examples))))
	if opts.TrainSubset != 1 {
		log.Printf("dataset %s: effective size reduced to %d (%.0f%%)",
			impl.Name(), d.effectiveSize, opts.TrainSubset*100)
	}

	return d, nil
}

// populate fills examples/features either from the cache file or by running
// the load + compile path. Only the leader persists the result.
func (d *Dataset) populate(key CacheKey, dir string, leader bool) error {
	path := key.Path(dir)
	if _, err := os.Stat(path); err == nil && !d.opts.OverwriteCache {
		examples, features, lerr := key.Load(dir)
		if lerr != nil {
			return lerr
		}
		log.Printf("dataset %s: loaded %d cached examples from %s", d.Name(), len(examples), path)
		d.examples, d.features = examples, features
		return nil
	}

	if schema, ok := d.impl.(SchemaLoader); ok {
		if err := schema.LoadSchema(); err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
	}

	loaderRNG := rand.New(rand.NewSource(d.opts.Seed))
	examples, err := d.loadData(d.opts.Mode, loaderRNG)
	if err != nil {
		return err
	}
	for i := range examples {
		examples[i].Dataset = d.Name()
	}
	d.examples = examples

	features, err := d.computeFeatures()
	if err != nil {
		return err
	}
	d.features = features

	if leader {
		if err := key.Save(dir, d.examples, d.features); err != nil {
			return fmt.Errorf("save cache: %w", err)
		}
		log.Printf("dataset %s: cached %d examples to %s", d.Name(), len(d.examples), path)
	}
	return nil
}

// loadData loads every split named in mode (comma-separated) and
// concatenates the results in split order. The ordering is part of the
// contract: callers map positions back to splits.
func (d *Dataset) loadData(mode string, rng *rand.Rand) ([]InputExample, error) {
	var examples []InputExample
	for _, split := range strings.Split(mode, ",") {
		split = strings.TrimSpace(split)
		if split == "" {
			continue
		}
		part, err := d.impl.LoadDataSingleSplit(split, rng)
		if err != nil {
			return nil, fmt.Errorf("load split %q: %w", split, err)
		}
		examples = append(examples, part...)
	}
	return examples, nil
}

// Name returns the dataset name.
func (d *Dataset) Name() string { return d.impl.Name() }

// String implements fmt.Stringer.
func (d *Dataset) String() string { return "dataset " + d.Name() }

// Config returns the experiment configuration the dataset was built with.
func (d *Dataset) Config() *Config { return d.cfg }

// Tokenizer returns the tokenizer collaborator.
func (d *Dataset) Tokenizer() tokenizers.Tokenizer { return d.opts.Tokenizer }

// DataDir returns the directory holding this dataset's files and cache.
func (d *Dataset) DataDir() string {
	name := d.impl.Name()
	if dn, ok := d.impl.(dataNamer); ok && dn.DataName() != "" {
		name = dn.DataName()
	}
	return filepath.Join(d.cfg.DataDir, name)
}

// TaskDescriptor returns the multitask prefix for this dataset.
func (d *Dataset) TaskDescriptor() string {
	if td, ok := d.impl.(taskDescriber); ok && td.TaskDescriptor() != "" {
		return td.TaskDescriptor()
	}
	return d.Name()
}

// Len returns the visible dataset length (after subset truncation).
func (d *Dataset) Len() int { return d.effectiveSize }

// NumExamples returns the total number of loaded examples, ignoring subset
// truncation.
func (d *Dataset) NumExamples() int { return len(d.examples) }

// Feature returns the feature at logical position i.
func (d *Dataset) Feature(i int) InputFeature {
	return d.features[d.indices[i]]
}

// GetExample returns the example at logical position i; it is the source of
// the feature at the same position.
func (d *Dataset) GetExample(i int) *InputExample {
	return &d.examples[d.indices[i]]
}

// Indices returns a copy of the logical-to-physical index permutation.
func (d *Dataset) Indices() []int {
	out := make([]int, len(d.indices))
	copy(out, d.indices)
	return out
}

// Evaluate runs the concrete dataset's evaluation over this instance.
func (d *Dataset) Evaluate(model Generator, batchSize int, macro bool) (map[string]float64, error) {
	return d.impl.EvaluateDataset(d, model, batchSize, macro)
}

// warnMaxSequenceLength logs a diagnostic when the longest tokenized
// sentence in the set exceeds the configured bound. Overflow is handled by
// truncation downstream; this is a warning, never an error.
func (d *Dataset) warnMaxSequenceLength(maxSequenceLength int, sentences []string, name string) {
	longest := 0
	for _, s := range sentences {
		if n := len(d.opts.Tokenizer.Tokenize(s)); n > longest {
			longest = n
		}
	}
	if longest > maxSequenceLength {
		log.Printf("warning: max sequence length is %d but the longest %s sequence is %d tokens",
			maxSequenceLength, name, longest)
	}
}
