package datasets

import (
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testCacheKey(name string) CacheKey {
	return CacheKey{
		Dataset:         name,
		Mode:            "train",
		Tokenizer:       "whitespace",
		MaxInputLength:  32,
		MaxOutputLength: 32,
		Experiment:      "exp1",
	}
}

func TestCacheKeyFilename(t *testing.T) {
	key := testCacheKey("ds")
	if got, want := key.Filename(), "cached_ds_train_whitespace_32_32_exp1.gob"; got != want {
		t.Fatalf("filename = %q, want %q", got, want)
	}

	key.Multitask = true
	if got, want := key.Filename(), "cached_ds_train_whitespace_32_32_exp1_multitask.gob"; got != want {
		t.Fatalf("multitask filename = %q, want %q", got, want)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	key := testCacheKey(uniqueName(t))

	examples := []InputExample{fixtureExample("a"), fixtureExample("b")}
	features := []InputFeature{
		{InputSentence: "john works at acme", OutputSentence: "john | works_at | acme"},
		{InputSentence: "john works at acme", OutputSentence: "john | works_at | acme"},
	}
	if err := key.Save(dir, examples, features); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	gotExamples, gotFeatures, err := key.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if diff := cmp.Diff(examples, gotExamples); diff != "" {
		t.Fatalf("examples differ after round trip:\n%s", diff)
	}
	if diff := cmp.Diff(features, gotFeatures); diff != "" {
		t.Fatalf("features differ after round trip:\n%s", diff)
	}
}

func TestCacheLoadMissingFile(t *testing.T) {
	key := testCacheKey(uniqueName(t))
	_, _, err := key.Load(t.TempDir())
	if !os.IsNotExist(err) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

// A corrupt cache file must surface as a hard error, never as a silent
// recompute.
func TestCacheLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	key := testCacheKey(uniqueName(t))
	if err := os.WriteFile(key.Path(dir), []byte("not a gob stream"), 0644); err != nil {
		t.Fatalf("write corrupt cache: %v", err)
	}
	if _, _, err := key.Load(dir); err == nil {
		t.Fatal("expected an error loading a corrupt cache file")
	}
}

func TestCacheSaveRejectsLengthMismatch(t *testing.T) {
	key := testCacheKey(uniqueName(t))
	err := key.Save(t.TempDir(), []InputExample{fixtureExample("a")}, nil)
	if err == nil {
		t.Fatal("expected an error for mismatched example/feature lengths")
	}
}

func TestDatasetCorruptCacheIsFatal(t *testing.T) {
	dir := t.TempDir()
	impl := &stubLoader{
		name:   uniqueName(t),
		splits: map[string][]InputExample{"train": {fixtureExample("a")}},
	}
	cfg := testConfig(dir)
	opts := testOptions()

	ds, err := New(impl, cfg, opts)
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}

	key := CacheKey{
		Dataset:         impl.name,
		Mode:            "train",
		Tokenizer:       opts.Tokenizer.Name(),
		MaxInputLength:  opts.MaxInputLength,
		MaxOutputLength: opts.MaxOutputLength,
	}
	if err := os.WriteFile(key.Path(ds.DataDir()), []byte("garbage"), 0644); err != nil {
		t.Fatalf("corrupt cache: %v", err)
	}

	if _, err := New(impl, cfg, opts); err == nil {
		t.Fatal("expected a corrupt cache to fail the build")
	}
}

func TestOverwriteCacheRecomputes(t *testing.T) {
	dir := t.TempDir()
	impl := &stubLoader{
		name:   uniqueName(t),
		splits: map[string][]InputExample{"train": {fixtureExample("a")}},
	}
	cfg := testConfig(dir)
	opts := testOptions()

	if _, err := New(impl, cfg, opts); err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	if impl.loadCalls != 1 {
		t.Fatalf("first build ran the loader %d times, want 1", impl.loadCalls)
	}

	if _, err := New(impl, cfg, opts); err != nil {
		t.Fatalf("cached build failed: %v", err)
	}
	if impl.loadCalls != 1 {
		t.Fatalf("cached build ran the loader, total calls %d", impl.loadCalls)
	}

	opts.OverwriteCache = true
	if _, err := New(impl, cfg, opts); err != nil {
		t.Fatalf("overwrite build failed: %v", err)
	}
	if impl.loadCalls != 2 {
		t.Fatalf("overwrite build did not rerun the loader, total calls %d", impl.loadCalls)
	}
}
