package datasets

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/mlpipes/seqdata/metrics"
)

// RelationDataset loads relation-extraction data from JSONL splits. Each
// split lives at <data dir>/<name>/<split>.jsonl, one JSON object per line:
//
//	{"id": "...", "tokens": [...], "entities": [{"type": ..., "start": ..., "end": ...}],
//	 "relations": [{"type": ..., "head": ..., "tail": ...}], "boundary": [...]}
//
// A schema.json next to the splits lists the entity and relation type
// vocabularies; it is loaded through the schema hook before any split.
type RelationDataset struct {
	DatasetName string
	Dir         string // dataset directory holding the split files

	// Populated by LoadSchema.
	EntityTypes   []string
	RelationTypes []string
}

type relationSchema struct {
	EntityTypes   []string `json:"entity_types"`
	RelationTypes []string `json:"relation_types"`
}

type relationRow struct {
	ID       string   `json:"id"`
	Tokens   []string `json:"tokens"`
	Entities []struct {
		Type  string `json:"type"`
		Start int    `json:"start"`
		End   int    `json:"end"`
	} `json:"entities"`
	Relations []struct {
		Type string `json:"type"`
		Head int    `json:"head"`
		Tail int    `json:"tail"`
	} `json:"relations"`
	Boundary []string `json:"boundary"`
}

// Name implements Loader.
func (r *RelationDataset) Name() string { return r.DatasetName }

// LoadSchema reads schema.json from the dataset directory.
func (r *RelationDataset) LoadSchema() error {
	path := filepath.Join(r.Dir, "schema.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", path, err)
	}
	var schema relationSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return fmt.Errorf("parse schema %s: %w", path, err)
	}
	r.EntityTypes = schema.EntityTypes
	r.RelationTypes = schema.RelationTypes
	log.Printf("dataset %s: schema has %d entity types, %d relation types",
		r.DatasetName, len(r.EntityTypes), len(r.RelationTypes))
	return nil
}

// LoadDataSingleSplit implements Loader. Rows keep file order; the rng is
// unused because this loader draws no randomness.
func (r *RelationDataset) LoadDataSingleSplit(split string, _ *rand.Rand) ([]InputExample, error) {
	path := filepath.Join(r.Dir, split+".jsonl")
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open split %s: %w", path, err)
	}
	defer fh.Close()

	var examples []InputExample
	scanner := bufio.NewScanner(fh)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<24)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row relationRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		ex, err := row.toExample()
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if ex.ID == "" {
			ex.ID = fmt.Sprintf("%s-%d", split, lineNo)
		}
		examples = append(examples, ex)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	log.Printf("dataset %s: loaded %d examples from split %s", r.DatasetName, len(examples), split)
	return examples, nil
}

func (row *relationRow) toExample() (InputExample, error) {
	if len(row.Tokens) == 0 {
		return InputExample{}, fmt.Errorf("example %q has no tokens", row.ID)
	}
	ex := InputExample{
		ID:             row.ID,
		Tokens:         row.Tokens,
		BoundaryTokens: row.Boundary,
	}
	for i, ent := range row.Entities {
		if ent.Start < 0 || ent.End > len(row.Tokens) || ent.Start >= ent.End {
			return InputExample{}, fmt.Errorf("entity %d has span [%d, %d) outside %d tokens",
				i, ent.Start, ent.End, len(row.Tokens))
		}
		ex.Entities = append(ex.Entities, Entity{Type: ent.Type, Start: ent.Start, End: ent.End})
	}
	for i, rel := range row.Relations {
		if rel.Head < 0 || rel.Head >= len(ex.Entities) || rel.Tail < 0 || rel.Tail >= len(ex.Entities) {
			return InputExample{}, fmt.Errorf("relation %d references entity out of range", i)
		}
		ex.Relations = append(ex.Relations, Relation{Type: rel.Type, Head: rel.Head, Tail: rel.Tail})
	}
	return ex, nil
}

// relationTriple is one parsed "head | type | tail" unit.
type relationTriple struct {
	Head string
	Type string
	Tail string
}

// parseTriples splits a rendered output sentence back into triples. The
// format is the one ShortWithRelation produces; malformed units are dropped.
func parseTriples(s string) []relationTriple {
	var out []relationTriple
	for _, unit := range strings.Split(s, " ; ") {
		fields := strings.Split(unit, " | ")
		if len(fields) != 3 {
			continue
		}
		t := relationTriple{
			Head: strings.TrimSpace(fields[0]),
			Type: strings.TrimSpace(fields[1]),
			Tail: strings.TrimSpace(fields[2]),
		}
		if t.Head == "" || t.Type == "" || t.Tail == "" {
			continue
		}
		out = append(out, t)
	}
	return out
}

// EvaluateDataset implements Loader: it generates output sentences for the
// whole dataset, parses predicted and gold triples, and scores them with
// set-style precision/recall/F1 per relation type.
func (r *RelationDataset) EvaluateDataset(d *Dataset, model Generator, batchSize int, macro bool) (map[string]float64, error) {
	if got := d.Config().OutputFormatType; got != OutputShortRelation {
		return nil, fmt.Errorf("relation evaluation requires the %q output format type, have %q",
			OutputShortRelation, got)
	}

	var render relationOutput
	perType := make(map[string]metrics.Counts)

	stream := d.GenerateOutputSentences(model, batchSize)
	for {
		pair, ok := stream.Next()
		if !ok {
			break
		}
		gold := tripleSet(parseTriples(render.ShortWithRelation(pair.Example)))
		pred := tripleSet(parseTriples(pair.Output))

		for t := range pred {
			c := perType[t.Type]
			if _, ok := gold[t]; ok {
				c.TP++
			} else {
				c.FP++
			}
			perType[t.Type] = c
		}
		for t := range gold {
			if _, ok := pred[t]; !ok {
				c := perType[t.Type]
				c.FN++
				perType[t.Type] = c
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	var scores metrics.Scores
	if macro {
		scores = metrics.Macro(perType)
	} else {
		scores = metrics.Micro(perType)
	}
	return map[string]float64{
		"precision": scores.Precision,
		"recall":    scores.Recall,
		"f1":        scores.F1,
	}, nil
}

// tripleSet deduplicates triples; evaluation is over sets, repeats do not
// score twice.
func tripleSet(ts []relationTriple) map[relationTriple]struct{} {
	set := make(map[relationTriple]struct{}, len(ts))
	for _, t := range ts {
		set[t] = struct{}{}
	}
	return set
}
