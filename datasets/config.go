package datasets

import (
	"errors"
	"fmt"
)

// OutputFormatType selects which of the four output rendering policies the
// feature compiler applies. Exactly one must be configured; there is no
// default.
type OutputFormatType string

const (
	OutputShortRelation OutputFormatType = "short-relation"
	OutputShort         OutputFormatType = "short"
	OutputLong          OutputFormatType = "long"
	OutputOriginal      OutputFormatType = "original"
)

// BoundaryPlacement selects where boundary information participates in
// generation: appended to the encoder input at feature-compilation time, or
// passed as a side channel into the decoder at generation time.
type BoundaryPlacement string

const (
	BoundaryEncoder BoundaryPlacement = "Encoder"
	BoundaryDecoder BoundaryPlacement = "Decoder"
)

// Config is the experiment-level configuration shared by every dataset built
// for one run. It participates in the cache fingerprint through Experiment
// and Multitask.
type Config struct {
	// InputFormat names the registered input formatter. Empty selects "plain".
	InputFormat string

	// OutputFormat names the registered output formatter.
	OutputFormat string

	// OutputFormatType picks one of the formatter's four rendering policies.
	OutputFormatType OutputFormatType

	// DataDir is the root directory holding per-dataset data directories.
	DataDir string

	// Experiment identifies the experiment; it is part of the cache key so
	// runs with different experiment setups never share cached features.
	Experiment string

	// Multitask prepends the dataset's task descriptor to every input
	// sentence, letting one model serve several datasets.
	Multitask bool

	// EvalNLL switches evaluation to negative-log-likelihood scoring in
	// callers that support it. Carried here so it is part of one config
	// surface; the pipeline itself does not branch on it.
	EvalNLL bool

	// BoundaryInWhere selects the boundary placement policy. Empty selects
	// BoundaryEncoder.
	BoundaryInWhere BoundaryPlacement

	// MaxOutputSeqLengthEval bounds generated sequences during evaluation.
	MaxOutputSeqLengthEval int

	// NumBeams is the beam count for generation. Zero selects 1 (greedy).
	NumBeams int
}

// Validate checks the configuration and fills defaults. It must pass before
// any example is processed: configuration problems fail at construction, not
// at first access.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	switch c.OutputFormatType {
	case OutputShortRelation, OutputShort, OutputLong, OutputOriginal:
	case "":
		return errors.New("output format type is not set")
	default:
		return fmt.Errorf("unknown output format type %q", c.OutputFormatType)
	}
	if c.InputFormat == "" {
		c.InputFormat = "plain"
	}
	if c.OutputFormat == "" {
		return errors.New("output format is not set")
	}
	if c.DataDir == "" {
		return errors.New("data directory is not set")
	}
	switch c.BoundaryInWhere {
	case BoundaryEncoder, BoundaryDecoder:
	case "":
		c.BoundaryInWhere = BoundaryEncoder
	default:
		return fmt.Errorf("unknown boundary placement %q", c.BoundaryInWhere)
	}
	if c.NumBeams <= 0 {
		c.NumBeams = 1
	}
	return nil
}
