package datasets

import (
	"strings"
	"sync"
)

// This package implements the dataset pipeline for sequence-to-sequence
// models: raw examples are loaded per split, compiled into tokenizable
// (input sentence, output sentence) pairs, cached on disk, and streamed
// through a generation loop for evaluation.

// Entity is a typed token span [Start, End) over an example's tokens.
type Entity struct {
	Type  string
	Start int
	End   int
}

// Relation is a typed, directed link between two entities, referenced by
// their positions in the example's Entities slice.
type Relation struct {
	Type string
	Head int
	Tail int
}

// InputExample is one raw data point. Examples are created once at load time
// (or restored from cache) and are not mutated afterwards.
//
// Dataset is a non-owning handle (the owning dataset's name) assigned after
// loading; it is resolved through the package registry when a formatter
// needs dataset-level context. Keeping a name instead of a pointer avoids a
// cyclic reference and serializes cleanly into the cache blob.
type InputExample struct {
	ID             string
	Tokens         []string
	Entities       []Entity
	Relations      []Relation
	BoundaryTokens []string
	Dataset        string
}

// Sentence returns the example's tokens joined by single spaces.
func (e *InputExample) Sentence() string {
	return strings.Join(e.Tokens, " ")
}

// BoundarySentence returns the space-joined boundary tokens.
func (e *InputExample) BoundarySentence() string {
	return strings.Join(e.BoundaryTokens, " ")
}

// EntitySpan returns the surface text of the i-th entity, or "" when the
// index is out of range.
func (e *InputExample) EntitySpan(i int) string {
	if i < 0 || i >= len(e.Entities) {
		return ""
	}
	ent := e.Entities[i]
	if ent.Start < 0 || ent.End > len(e.Tokens) || ent.Start >= ent.End {
		return ""
	}
	return strings.Join(e.Tokens[ent.Start:ent.End], " ")
}

// owner resolves the example's dataset handle, or nil when the dataset is
// not registered (e.g. examples built in isolation by tests).
func (e *InputExample) owner() *Dataset {
	return LookupDataset(e.Dataset)
}

// InputFeature is the tensor-ready counterpart of an InputExample: one
// feature per example, same index space. BoundarySentence is carried even
// when the selected formatting mode does not consume it, so downstream
// consumers (the Decoder boundary policy) can read it back.
type InputFeature struct {
	InputSentence    string
	OutputSentence   string
	BoundarySentence string
}

// Dataset registry. Examples refer to their owning dataset by name; the
// registry turns the name back into the instance.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]*Dataset)
)

func registerDataset(d *Dataset) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Name()] = d
}

// LookupDataset returns the registered dataset with the given name, or nil.
func LookupDataset(name string) *Dataset {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}
