package datasets

import (
	"fmt"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// EncodedBatch stores a tokenized batch in flat contiguous buffers: the
// input and output id/mask sequences of BatchSize features, each padded to
// its configured maximum length.
type EncodedBatch struct {
	InputIDs   []int32
	InputMask  []int32
	OutputIDs  []int32
	OutputMask []int32

	BatchSize int
	InputDim  int
	OutputDim int
}

// EncodeFeatures tokenizes the features at the given logical positions into
// a flat batch. Every row is padded to the dataset's maximum input/output
// lengths, so dimensions are uniform by construction.
func (d *Dataset) EncodeFeatures(positions []int) (*EncodedBatch, error) {
	b := &EncodedBatch{
		BatchSize: len(positions),
		InputDim:  d.opts.MaxInputLength,
		OutputDim: d.opts.MaxOutputLength,
	}
	if b.BatchSize == 0 {
		return b, nil
	}

	tok := d.opts.Tokenizer
	b.InputIDs = make([]int32, b.BatchSize*b.InputDim)
	b.InputMask = make([]int32, b.BatchSize*b.InputDim)
	b.OutputIDs = make([]int32, b.BatchSize*b.OutputDim)
	b.OutputMask = make([]int32, b.BatchSize*b.OutputDim)

	for row, pos := range positions {
		if pos < 0 || pos >= d.Len() {
			return nil, fmt.Errorf("batch position %d out of range [0, %d)", pos, d.Len())
		}
		f := d.Feature(pos)

		ids, mask := tok.Encode(f.InputSentence, b.InputDim)
		copy(b.InputIDs[row*b.InputDim:], ids)
		copy(b.InputMask[row*b.InputDim:], mask)

		ids, mask = tok.Encode(f.OutputSentence, b.OutputDim)
		copy(b.OutputIDs[row*b.OutputDim:], ids)
		copy(b.OutputMask[row*b.OutputDim:], mask)
	}
	return b, nil
}

// ToGomlxTensors converts the batch into (inputs, labels) gomlx tensors of
// shape [BatchSize, dim].
func (b *EncodedBatch) ToGomlxTensors() (*tensors.Tensor, *tensors.Tensor, error) {
	if b.BatchSize == 0 || b.InputDim == 0 || b.OutputDim == 0 {
		empty := make([][]int32, 0)
		return tensors.FromAnyValue(empty), tensors.FromAnyValue(empty), nil
	}
	inputs := make([][]int32, b.BatchSize)
	labels := make([][]int32, b.BatchSize)
	for i := range b.BatchSize {
		inputs[i] = b.InputIDs[i*b.InputDim : (i+1)*b.InputDim]
		labels[i] = b.OutputIDs[i*b.OutputDim : (i+1)*b.OutputDim]
	}
	return tensors.FromAnyValue(inputs), tensors.FromAnyValue(labels), nil
}

// BatchIterator walks a dataset in logical order, yielding gomlx tensor
// batches. It satisfies the train.Dataset contract (Name/Yield/Restart):
// Yield returns io.EOF once the epoch is exhausted, Restart rewinds.
type BatchIterator struct {
	d         *Dataset
	batchSize int
	next      int
}

// Batches returns an iterator over the dataset's features in logical order.
func (d *Dataset) Batches(batchSize int) *BatchIterator {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchIterator{d: d, batchSize: batchSize}
}

// Name returns the underlying dataset's name.
func (it *BatchIterator) Name() string { return it.d.Name() }

// Yield returns the next (inputs, labels) tensor pair, or io.EOF at the end
// of the epoch.
func (it *BatchIterator) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	if it.next >= it.d.Len() {
		return nil, nil, nil, io.EOF
	}
	hi := it.next + it.batchSize
	if hi > it.d.Len() {
		hi = it.d.Len()
	}
	positions := make([]int, 0, hi-it.next)
	for i := it.next; i < hi; i++ {
		positions = append(positions, i)
	}

	batch, err := it.d.EncodeFeatures(positions)
	if err != nil {
		return nil, nil, nil, err
	}
	in, la, err := batch.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	it.next = hi
	return nil, []*tensors.Tensor{in}, []*tensors.Tensor{la}, nil
}

// Restart rewinds the iterator to the start of the epoch.
func (it *BatchIterator) Restart() error {
	it.next = 0
	return nil
}
