package tokenizers

import "strings"

// Special token ids shared by the whitespace tokenizer. Padding is id 0 so
// that zero-filled buffers are valid padded sequences.
const (
	PadID int32 = 0
	UnkID int32 = 1
	EOSID int32 = 2
)

const numSpecialTokens = 3

// Whitespace is a deterministic word-level tokenizer over a fixed vocabulary.
// It exists for tests and the CLI; production models plug in their own
// Tokenizer implementation. Unknown words map to UnkID, every encoded
// sequence is terminated with EOSID before padding.
type Whitespace struct {
	vocab   map[string]int32
	inverse []string
}

// NewWhitespace builds a whitespace tokenizer from the given word list.
// Word ids are assigned in list order after the special tokens, so the same
// list always yields the same encoding.
func NewWhitespace(words []string) *Whitespace {
	w := &Whitespace{
		vocab:   make(map[string]int32, len(words)),
		inverse: make([]string, numSpecialTokens, numSpecialTokens+len(words)),
	}
	w.inverse[PadID] = "<pad>"
	w.inverse[UnkID] = "<unk>"
	w.inverse[EOSID] = "</s>"
	for _, word := range words {
		if _, ok := w.vocab[word]; ok {
			continue
		}
		w.vocab[word] = int32(len(w.inverse))
		w.inverse = append(w.inverse, word)
	}
	return w
}

// Name implements Tokenizer.
func (w *Whitespace) Name() string { return "whitespace" }

// VocabSize returns the number of entries including special tokens.
func (w *Whitespace) VocabSize() int { return len(w.inverse) }

// Tokenize implements Tokenizer by splitting on whitespace.
func (w *Whitespace) Tokenize(text string) []string {
	return strings.Fields(text)
}

// Encode implements Tokenizer. The returned ids end with EOSID and are padded
// with PadID up to maxLength; sequences longer than maxLength are truncated
// (the EOS token is kept as the final position).
func (w *Whitespace) Encode(text string, maxLength int) ([]int32, []int32) {
	tokens := w.Tokenize(text)
	ids := make([]int32, 0, len(tokens)+1)
	for _, tok := range tokens {
		id, ok := w.vocab[tok]
		if !ok {
			id = UnkID
		}
		ids = append(ids, id)
	}
	ids = append(ids, EOSID)

	if maxLength > 0 && len(ids) > maxLength {
		ids = ids[:maxLength]
		ids[maxLength-1] = EOSID
	}

	mask := make([]int32, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	if maxLength > 0 {
		for len(ids) < maxLength {
			ids = append(ids, PadID)
			mask = append(mask, 0)
		}
	}
	return ids, mask
}

// Decode implements Tokenizer. Tokens are joined with single spaces and no
// further cleanup is applied.
func (w *Whitespace) Decode(ids []int32, skipSpecialTokens bool) string {
	var sb strings.Builder
	for _, id := range ids {
		if skipSpecialTokens && id < numSpecialTokens {
			continue
		}
		if int(id) >= len(w.inverse) || id < 0 {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(w.inverse[id])
	}
	return sb.String()
}
