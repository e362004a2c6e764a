package tokenizers

import (
	"reflect"
	"testing"
)

func TestWhitespaceEncodePadding(t *testing.T) {
	tok := NewWhitespace([]string{"a", "b", "c"})

	ids, mask := tok.Encode("a b", 6)
	wantIDs := []int32{3, 4, EOSID, PadID, PadID, PadID}
	wantMask := []int32{1, 1, 1, 0, 0, 0}
	if !reflect.DeepEqual(ids, wantIDs) {
		t.Fatalf("ids = %v, want %v", ids, wantIDs)
	}
	if !reflect.DeepEqual(mask, wantMask) {
		t.Fatalf("mask = %v, want %v", mask, wantMask)
	}
}

func TestWhitespaceEncodeTruncation(t *testing.T) {
	tok := NewWhitespace([]string{"a", "b", "c"})

	ids, mask := tok.Encode("a b c a b c", 4)
	if len(ids) != 4 || len(mask) != 4 {
		t.Fatalf("got lengths %d/%d, want 4/4", len(ids), len(mask))
	}
	if ids[3] != EOSID {
		t.Fatalf("truncated sequence should end with EOS, got %d", ids[3])
	}
}

func TestWhitespaceUnknownWords(t *testing.T) {
	tok := NewWhitespace([]string{"known"})

	ids, _ := tok.Encode("known mystery", 0)
	if ids[0] == UnkID {
		t.Fatalf("known word encoded as UNK")
	}
	if ids[1] != UnkID {
		t.Fatalf("unknown word got id %d, want UnkID", ids[1])
	}
}

func TestWhitespaceDecodeRoundTrip(t *testing.T) {
	tok := NewWhitespace([]string{"the", "cat", "sat"})

	ids, _ := tok.Encode("the cat sat", 8)
	got := tok.Decode(ids, true)
	if got != "the cat sat" {
		t.Fatalf("decode = %q, want %q", got, "the cat sat")
	}

	// Special tokens survive when not skipped.
	withSpecials := tok.Decode(ids, false)
	if withSpecials == got {
		t.Fatalf("expected special tokens in %q", withSpecials)
	}
}
