package datasets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeRelationFixture(t *testing.T, root, name string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}

	schema := `{"entity_types": ["person", "org", "loc"], "relation_types": ["works_at", "lives_in"]}`
	if err := os.WriteFile(filepath.Join(dir, "schema.json"), []byte(schema), 0644); err != nil {
		t.Fatalf("write schema: %v", err)
	}

	train := `{"id": "s1", "tokens": ["john", "works", "at", "acme"], "entities": [{"type": "person", "start": 0, "end": 1}, {"type": "org", "start": 3, "end": 4}], "relations": [{"type": "works_at", "head": 0, "tail": 1}]}
{"id": "s2", "tokens": ["mary", "lives", "in", "paris"], "entities": [{"type": "person", "start": 0, "end": 1}, {"type": "loc", "start": 3, "end": 4}], "relations": [{"type": "lives_in", "head": 0, "tail": 1}]}
`
	if err := os.WriteFile(filepath.Join(dir, "train.jsonl"), []byte(train), 0644); err != nil {
		t.Fatalf("write train split: %v", err)
	}
	return dir
}

func TestRelationDatasetLoad(t *testing.T) {
	root := t.TempDir()
	name := uniqueName(t)
	dir := writeRelationFixture(t, root, name)

	impl := &RelationDataset{DatasetName: name, Dir: dir}
	ds, err := New(impl, testConfig(root), testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := ds.Len(); got != 2 {
		t.Fatalf("expected 2 examples, got %d", got)
	}
	if diff := cmp.Diff([]string{"works_at", "lives_in"}, impl.RelationTypes); diff != "" {
		t.Fatalf("schema relation types differ:\n%s", diff)
	}
	if got := ds.Feature(0).OutputSentence; got != "john | works_at | acme" {
		t.Fatalf("feature 0 output = %q", got)
	}
	if got := ds.Feature(1).OutputSentence; got != "mary | lives_in | paris" {
		t.Fatalf("feature 1 output = %q", got)
	}
}

func TestRelationDatasetRejectsBadRows(t *testing.T) {
	root := t.TempDir()
	name := uniqueName(t)
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	row := `{"id": "bad", "tokens": ["a"], "entities": [{"type": "person", "start": 0, "end": 5}]}`
	if err := os.WriteFile(filepath.Join(dir, "train.jsonl"), []byte(row+"\n"), 0644); err != nil {
		t.Fatalf("write split: %v", err)
	}

	impl := &RelationDataset{DatasetName: name, Dir: dir}
	_, err := impl.LoadDataSingleSplit("train", nil)
	if err == nil {
		t.Fatal("expected an error for an entity span outside the tokens")
	}
}

func TestParseTriples(t *testing.T) {
	got := parseTriples("john | works_at | acme ; mary | lives_in | paris")
	want := []relationTriple{
		{Head: "john", Type: "works_at", Tail: "acme"},
		{Head: "mary", Type: "lives_in", Tail: "paris"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("triples differ:\n%s", diff)
	}
}

func TestParseTriplesDropsMalformedUnits(t *testing.T) {
	got := parseTriples("john | works_at | acme ; dangling text ; | | ")
	if len(got) != 1 || got[0].Type != "works_at" {
		t.Fatalf("expected one valid triple, got %v", got)
	}
	if got := parseTriples(""); got != nil {
		t.Fatalf("empty sentence parsed to %v", got)
	}
}

// goldGenerator answers every row with its gold output sentence, so the
// evaluation must score a perfect F1.
type goldGenerator struct {
	ds   *Dataset
	next int
}

func (g *goldGenerator) Generate(inputIDs [][]int32, opts GenerateOptions) ([][]int32, error) {
	tok := g.ds.Tokenizer()
	out := make([][]int32, len(inputIDs))
	for i := range inputIDs {
		ids, _ := tok.Encode(g.ds.Feature(g.next).OutputSentence, 32)
		out[i] = ids
		g.next++
	}
	return out, nil
}

func TestRelationEvaluatePerfectModel(t *testing.T) {
	root := t.TempDir()
	name := uniqueName(t)
	dir := writeRelationFixture(t, root, name)

	impl := &RelationDataset{DatasetName: name, Dir: dir}
	ds, err := New(impl, testConfig(root), testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	scores, err := ds.Evaluate(&goldGenerator{ds: ds}, 2, false)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	for _, metric := range []string{"precision", "recall", "f1"} {
		if scores[metric] != 1 {
			t.Fatalf("%s = %v, want 1 (all scores: %v)", metric, scores[metric], scores)
		}
	}
}

// silentGenerator predicts nothing, so recall and F1 collapse to zero.
type silentGenerator struct{}

func (silentGenerator) Generate(inputIDs [][]int32, _ GenerateOptions) ([][]int32, error) {
	return make([][]int32, len(inputIDs)), nil
}

func TestRelationEvaluateSilentModel(t *testing.T) {
	root := t.TempDir()
	name := uniqueName(t)
	dir := writeRelationFixture(t, root, name)

	impl := &RelationDataset{DatasetName: name, Dir: dir}
	ds, err := New(impl, testConfig(root), testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	scores, err := ds.Evaluate(silentGenerator{}, 2, true)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if scores["f1"] != 0 || scores["recall"] != 0 {
		t.Fatalf("expected zero recall and f1, got %v", scores)
	}
}

func TestRelationEvaluateRequiresShortRelationFormat(t *testing.T) {
	root := t.TempDir()
	name := uniqueName(t)
	dir := writeRelationFixture(t, root, name)

	impl := &RelationDataset{DatasetName: name, Dir: dir}
	cfg := testConfig(root)
	cfg.OutputFormatType = OutputShort
	ds, err := New(impl, cfg, testOptions())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := ds.Evaluate(silentGenerator{}, 2, false); err == nil {
		t.Fatal("expected an error for a non short-relation configuration")
	}
}
