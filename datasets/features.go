package datasets

import "fmt"

// computeFeatures compiles every loaded example into its InputFeature. The
// two slices are parallel: feature i is derived from example i and nothing
// else. The selected OutputFormatType picks one of the four rendering
// policies; an unknown type is an error before any example is touched.
func (d *Dataset) computeFeatures() ([]InputFeature, error) {
	render, err := d.outputRenderer()
	if err != nil {
		return nil, err
	}

	features := make([]InputFeature, len(d.examples))
	inputSentences := make([]string, len(d.examples))
	outputSentences := make([]string, len(d.examples))
	for i := range d.examples {
		ex := &d.examples[i]

		input := d.inputFormat.Format(ex, d.cfg.Multitask)
		boundary := ex.BoundarySentence()
		if d.cfg.BoundaryInWhere == BoundaryEncoder && boundary != "" {
			// The Encoder policy folds boundary context into the input text;
			// the Decoder policy defers it to generation time.
			input = input + " " + boundary
		}

		features[i] = InputFeature{
			InputSentence:    input,
			OutputSentence:   render(ex),
			BoundarySentence: boundary,
		}
		inputSentences[i] = features[i].InputSentence
		outputSentences[i] = features[i].OutputSentence
	}

	d.warnMaxSequenceLength(d.opts.MaxInputLength, inputSentences, "input")
	d.warnMaxSequenceLength(d.opts.MaxOutputLength, outputSentences, "output")

	return features, nil
}

// outputRenderer binds the configured OutputFormatType to the matching
// formatter method.
func (d *Dataset) outputRenderer() (func(*InputExample) string, error) {
	switch d.cfg.OutputFormatType {
	case OutputShortRelation:
		return d.outputFormat.ShortWithRelation, nil
	case OutputShort:
		return d.outputFormat.Short, nil
	case OutputLong:
		return d.outputFormat.Long, nil
	case OutputOriginal:
		return d.outputFormat.Original, nil
	default:
		return nil, fmt.Errorf("unknown output format type %q", d.cfg.OutputFormatType)
	}
}
