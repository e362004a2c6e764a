package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mlpipes/seqdata/datasets"
	"github.com/mlpipes/seqdata/tokenizers"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// fileConfig mirrors the CLI flags in a JSON tunables file. Values apply
// only where the corresponding flag was left at its default; explicit flags
// always win.
type fileConfig struct {
	DataDir          *string `json:"data_dir"`
	Dataset          *string `json:"dataset"`
	Splits           *string `json:"splits"`
	MaxInput         *int    `json:"max_input"`
	MaxOutput        *int    `json:"max_output"`
	OutputFormatType *string `json:"output_format_type"`
	Boundary         *string `json:"boundary"`
	Experiment       *string `json:"experiment"`
	Multitask        *bool   `json:"multitask"`
	Vocab            *string `json:"vocab"`
	OutDir           *string `json:"out"`
	Seed             *int64  `json:"seed"`
}

func main() {
	configPath := flag.String("config", "", "path to a JSON tunables file; explicit CLI flags override its values")
	dataDir := flag.String("data", "data", "root directory holding per-dataset data directories")
	name := flag.String("dataset", "", "dataset name (its files live under <data>/<dataset>/)")
	action := flag.String("action", "inspect", "what to do: 'inspect' (length histogram and stats) or 'precompute' (build feature caches)")
	splits := flag.String("splits", "train", "comma-separated split modes; precompute builds one cache per listed mode")
	maxInput := flag.Int("max-input", 256, "maximum input sequence length in tokens")
	maxOutput := flag.Int("max-output", 256, "maximum output sequence length in tokens")
	outputFormatType := flag.String("output-format-type", "short-relation", "output rendering: short-relation, short, long or original")
	boundary := flag.String("boundary", "Encoder", "boundary placement: Encoder or Decoder")
	experiment := flag.String("experiment", "", "experiment identifier (part of the cache fingerprint)")
	multitask := flag.Bool("multitask", false, "prefix inputs with the dataset's task descriptor")
	vocabPath := flag.String("vocab", "", "path to a vocabulary file, one word per line. If empty, the vocabulary is derived from the splits")
	outDir := flag.String("out", "plots", "output directory for generated plots")
	seed := flag.Int64("seed", 42, "random seed for loading and shuffling")
	overwrite := flag.Bool("overwrite-cache", false, "force recomputation even when a cache file exists")

	flag.Parse()

	if *configPath != "" {
		set := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

		data, err := os.ReadFile(*configPath)
		if err != nil {
			log.Fatalf("failed to read config %s: %v", *configPath, err)
		}
		var fc fileConfig
		if err := json.Unmarshal(data, &fc); err != nil {
			log.Fatalf("failed to parse config %s: %v", *configPath, err)
		}
		applyString := func(name string, dst *string, v *string) {
			if v != nil && !set[name] {
				*dst = *v
			}
		}
		applyString("data", dataDir, fc.DataDir)
		applyString("dataset", name, fc.Dataset)
		applyString("splits", splits, fc.Splits)
		applyString("output-format-type", outputFormatType, fc.OutputFormatType)
		applyString("boundary", boundary, fc.Boundary)
		applyString("experiment", experiment, fc.Experiment)
		applyString("vocab", vocabPath, fc.Vocab)
		applyString("out", outDir, fc.OutDir)
		if fc.MaxInput != nil && !set["max-input"] {
			*maxInput = *fc.MaxInput
		}
		if fc.MaxOutput != nil && !set["max-output"] {
			*maxOutput = *fc.MaxOutput
		}
		if fc.Multitask != nil && !set["multitask"] {
			*multitask = *fc.Multitask
		}
		if fc.Seed != nil && !set["seed"] {
			*seed = *fc.Seed
		}
		log.Printf("Applied tunables from %s", *configPath)
	}

	if *name == "" {
		log.Fatalf("missing -dataset")
	}

	impl := &datasets.RelationDataset{
		DatasetName: *name,
		Dir:         filepath.Join(*dataDir, *name),
	}

	tok, err := buildTokenizer(*vocabPath, impl, *splits)
	if err != nil {
		log.Fatalf("failed to build tokenizer: %v", err)
	}
	log.Printf("Tokenizer ready: %s", tok.Name())

	cfg := &datasets.Config{
		OutputFormat:     "relation",
		OutputFormatType: datasets.OutputFormatType(*outputFormatType),
		DataDir:          *dataDir,
		Experiment:       *experiment,
		Multitask:        *multitask,
		BoundaryInWhere:  datasets.BoundaryPlacement(*boundary),
	}

	switch *action {
	case "inspect":
		if err := inspect(impl, cfg, tok, *splits, *maxInput, *maxOutput, *seed, *overwrite, *outDir); err != nil {
			log.Fatalf("inspect failed: %v", err)
		}
	case "precompute":
		if err := precompute(impl, cfg, tok, *splits, *maxInput, *maxOutput, *seed, *overwrite); err != nil {
			log.Fatalf("precompute failed: %v", err)
		}
	default:
		log.Fatalf("unknown action %q", *action)
	}
}

// buildTokenizer reads the vocabulary file when one is given, and otherwise
// derives the vocabulary from the split data itself: every token, entity
// type and relation type seen in the listed splits, plus the structural
// tokens the output renderers emit.
func buildTokenizer(path string, impl *datasets.RelationDataset, splits string) (tokenizers.Tokenizer, error) {
	if path != "" {
		words, err := readVocab(path)
		if err != nil {
			return nil, err
		}
		log.Printf("Loaded vocabulary: %d words from %s", len(words), path)
		return tokenizers.NewWhitespace(words), nil
	}

	seen := make(map[string]bool)
	var words []string
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			words = append(words, w)
		}
	}
	// Structural tokens used by the renderers.
	for _, w := range []string{"|", ";", "[", "]", ":", "the", "relation", "between", "and", "is"} {
		add(w)
	}
	for _, split := range strings.Split(splits, ",") {
		split = strings.TrimSpace(split)
		if split == "" {
			continue
		}
		examples, err := impl.LoadDataSingleSplit(split, nil)
		if err != nil {
			return nil, fmt.Errorf("derive vocabulary from split %q: %w", split, err)
		}
		for i := range examples {
			for _, w := range examples[i].Tokens {
				add(w)
			}
			for _, w := range examples[i].BoundaryTokens {
				add(w)
			}
			for _, ent := range examples[i].Entities {
				add(ent.Type)
			}
			for _, rel := range examples[i].Relations {
				add(rel.Type)
			}
		}
	}
	log.Printf("Derived vocabulary: %d words", len(words))
	return tokenizers.NewWhitespace(words), nil
}

func readVocab(path string) ([]string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	var words []string
	scanner := bufio.NewScanner(fh)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	return words, scanner.Err()
}

func buildDataset(impl *datasets.RelationDataset, cfg *datasets.Config, tok tokenizers.Tokenizer,
	mode string, maxInput, maxOutput int, seed int64, overwrite bool) (*datasets.Dataset, error) {
	return datasets.New(impl, cfg, datasets.Options{
		Tokenizer:       tok,
		MaxInputLength:  maxInput,
		MaxOutputLength: maxOutput,
		Mode:            mode,
		Seed:            seed,
		OverwriteCache:  overwrite,
	})
}

// inspect builds the dataset for the given mode, logs length statistics and
// writes a token-length histogram PNG.
func inspect(impl *datasets.RelationDataset, cfg *datasets.Config, tok tokenizers.Tokenizer,
	mode string, maxInput, maxOutput int, seed int64, overwrite bool, outDir string) error {
	ds, err := buildDataset(impl, cfg, tok, mode, maxInput, maxOutput, seed, overwrite)
	if err != nil {
		return err
	}
	log.Printf("Dataset %s loaded: %d examples (mode %s)", ds.Name(), ds.Len(), mode)

	inputLens := make(plotter.Values, 0, ds.Len())
	outputLens := make(plotter.Values, 0, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		f := ds.Feature(i)
		inputLens = append(inputLens, float64(len(tok.Tokenize(f.InputSentence))))
		outputLens = append(outputLens, float64(len(tok.Tokenize(f.OutputSentence))))
	}

	logLengthStats("input", inputLens, maxInput)
	logLengthStats("output", outputLens, maxOutput)

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", outDir, err)
	}
	outPath := filepath.Join(outDir, fmt.Sprintf("%s_lengths.png", ds.Name()))
	if err := plotLengths(outPath, ds.Name(), inputLens, outputLens); err != nil {
		return err
	}
	log.Printf("Length histogram written to %s", outPath)
	return nil
}

func logLengthStats(kind string, lens plotter.Values, limit int) {
	if len(lens) == 0 {
		log.Printf("%s lengths: no examples", kind)
		return
	}
	sorted := append(plotter.Values(nil), lens...)
	sort.Float64s(sorted)
	var over int
	for _, v := range sorted {
		if int(v) > limit {
			over++
		}
	}
	median := sorted[len(sorted)/2]
	log.Printf("%s lengths: min=%.0f median=%.0f max=%.0f, %d/%d over the %d-token limit",
		kind, sorted[0], median, sorted[len(sorted)-1], over, len(sorted), limit)
}

// plotLengths overlays the input (blue) and output (red) token-length
// histograms into one PNG.
func plotLengths(path, name string, inputLens, outputLens plotter.Values) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s: token lengths (input blue, output red)", name)
	p.X.Label.Text = "tokens"
	p.Y.Label.Text = "examples"

	in, err := plotter.NewHist(inputLens, 40)
	if err != nil {
		return err
	}
	in.FillColor = color.RGBA{R: 20, G: 80, B: 200, A: 128}
	p.Add(in)
	p.Legend.Add("input", in)

	out, err := plotter.NewHist(outputLens, 40)
	if err != nil {
		return err
	}
	out.FillColor = color.RGBA{R: 200, G: 30, B: 30, A: 128}
	p.Add(out)
	p.Legend.Add("output", out)

	return p.Save(8*vg.Inch, 6*vg.Inch, path)
}

// precompute builds the feature cache for every listed split mode. The
// builds run concurrently; each mode writes its own cache file and gets its
// own loader instance because the schema hook mutates the loader.
func precompute(impl *datasets.RelationDataset, cfg *datasets.Config, tok tokenizers.Tokenizer,
	splits string, maxInput, maxOutput int, seed int64, overwrite bool) error {
	var g errgroup.Group
	for _, mode := range strings.Split(splits, ",") {
		mode = strings.TrimSpace(mode)
		if mode == "" {
			continue
		}
		g.Go(func() error {
			loader := &datasets.RelationDataset{DatasetName: impl.DatasetName, Dir: impl.Dir}
			ds, err := buildDataset(loader, cfg, tok, mode, maxInput, maxOutput, seed, overwrite)
			if err != nil {
				return fmt.Errorf("mode %q: %w", mode, err)
			}
			log.Printf("Precomputed mode %q: %d examples", mode, ds.Len())
			return nil
		})
	}
	return g.Wait()
}
