package tokenizers

// Tokenizer is the surface the dataset pipeline needs from a tokenizer. The
// actual subword algorithm (BPE, SentencePiece, ...) lives behind this
// interface; the pipeline only splits, encodes to padded id/mask pairs, and
// decodes generated ids back to text.
//
// Name identifies the tokenizer implementation and participates in the cache
// fingerprint: two tokenizers with different names never share cached
// features.
type Tokenizer interface {
	Name() string

	// Tokenize splits text into tokens without mapping them to ids. Used for
	// length diagnostics.
	Tokenize(text string) []string

	// Encode converts text into token ids padded (or truncated) to maxLength,
	// together with an attention mask of the same length (1 for real tokens,
	// 0 for padding). maxLength <= 0 means no padding or truncation.
	Encode(text string, maxLength int) (ids []int32, mask []int32)

	// Decode converts generated ids back to text. When skipSpecialTokens is
	// set, control tokens (padding, end-of-sequence) are dropped. No
	// whitespace cleanup is applied beyond single-space joining.
	Decode(ids []int32, skipSpecialTokens bool) string
}
