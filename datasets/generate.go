package datasets

import (
	"fmt"

	"github.com/mlpipes/seqdata/tokenizers"
)

// decoderPromptOffset is the number of leading decoder positions occupied by
// the fixed boundary prompt when BoundaryInWhere is Decoder. Generated
// sequences carry the prompt verbatim at the front; the stream strips it
// before decoding. The value is tied to the fixed prompt template and does
// not generalize to other prompt shapes.
const decoderPromptOffset = 51

// GenerateOptions parameterizes one model generation call.
type GenerateOptions struct {
	// MaxLength bounds the generated sequence length.
	MaxLength int

	// NumBeams is the beam count; 1 is greedy.
	NumBeams int

	// BoundaryIDs, when non-nil, is the per-example encoded boundary prompt
	// fed to the decoder (one row per batch row, padded to a common length).
	BoundaryIDs [][]int32
}

// Generator produces output token sequences from batches of input token
// sequences. Implementations wrap a trained sequence-to-sequence model; the
// pipeline treats them as opaque.
type Generator interface {
	Generate(inputIDs [][]int32, opts GenerateOptions) ([][]int32, error)
}

// EvalPair couples a gold example with the model's decoded output for it.
type EvalPair struct {
	Example *InputExample
	Output  string
}

// EvalStream yields (example, output) pairs in the dataset's fixed logical
// order. Generation happens batch by batch as the consumer pulls; the i-th
// pair always corresponds to GetExample(i).
type EvalStream struct {
	d         *Dataset
	model     Generator
	batchSize int

	pending []EvalPair
	next    int
	err     error
}

// GenerateOutputSentences runs the model over the dataset and returns a
// stream of (example, decoded output) pairs. Iteration order is the logical
// index order; batches are cut at batchSize with a short final batch.
func (d *Dataset) GenerateOutputSentences(model Generator, batchSize int) *EvalStream {
	if batchSize < 1 {
		batchSize = 1
	}
	return &EvalStream{d: d, model: model, batchSize: batchSize}
}

// Next returns the next pair. It reports false when the stream is exhausted
// or a generation error occurred; Err distinguishes the two.
func (s *EvalStream) Next() (EvalPair, bool) {
	if s.err != nil {
		return EvalPair{}, false
	}
	if len(s.pending) == 0 {
		if s.next >= s.d.Len() {
			return EvalPair{}, false
		}
		if err := s.fill(); err != nil {
			s.err = err
			return EvalPair{}, false
		}
	}
	pair := s.pending[0]
	s.pending = s.pending[1:]
	return pair, true
}

// Err returns the first generation error, if any.
func (s *EvalStream) Err() error { return s.err }

// fill generates the next batch and queues its pairs.
func (s *EvalStream) fill() error {
	lo := s.next
	hi := lo + s.batchSize
	if hi > s.d.Len() {
		hi = s.d.Len()
	}

	tok := s.d.Tokenizer()
	inputIDs := make([][]int32, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ids, _ := tok.Encode(s.d.Feature(i).InputSentence, s.d.opts.MaxInputLength)
		inputIDs = append(inputIDs, ids)
	}

	opts := GenerateOptions{
		MaxLength: s.d.cfg.MaxOutputSeqLengthEval,
		NumBeams:  s.d.cfg.NumBeams,
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = s.d.opts.MaxOutputLength
	}

	decoderBoundary := s.d.cfg.BoundaryInWhere == BoundaryDecoder
	if decoderBoundary {
		opts.BoundaryIDs = s.encodeBoundaries(tok, lo, hi)
	}

	predictions, err := s.model.Generate(inputIDs, opts)
	if err != nil {
		return fmt.Errorf("generate batch [%d, %d): %w", lo, hi, err)
	}
	if len(predictions) != hi-lo {
		return fmt.Errorf("generate batch [%d, %d): got %d predictions for %d inputs",
			lo, hi, len(predictions), hi-lo)
	}

	for i, pred := range predictions {
		if decoderBoundary {
			// The decoder echoes the boundary prompt; drop it before decoding.
			if len(pred) > decoderPromptOffset {
				pred = pred[decoderPromptOffset:]
			} else {
				pred = nil
			}
		}
		s.pending = append(s.pending, EvalPair{
			Example: s.d.GetExample(lo + i),
			Output:  tok.Decode(pred, true),
		})
	}
	s.next = hi
	return nil
}

// encodeBoundaries encodes the boundary sentences for rows [lo, hi) to the
// fixed decoder prompt length.
func (s *EvalStream) encodeBoundaries(tok tokenizers.Tokenizer, lo, hi int) [][]int32 {
	out := make([][]int32, 0, hi-lo)
	for i := lo; i < hi; i++ {
		ids, _ := tok.Encode(s.d.Feature(i).BoundarySentence, decoderPromptOffset)
		out = append(out, ids)
	}
	return out
}
