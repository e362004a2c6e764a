package datasets

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// cacheVersion is incremented when the on-disk cache format changes. A
// version mismatch is a hard error, never a silent recompute.
const cacheVersion = 1

// CacheKey is the deterministic fingerprint that keys a cached
// (examples, features) pair. Any change to any field points to a different
// file, so stale artifacts are never read back under a new configuration.
type CacheKey struct {
	Dataset         string
	Mode            string
	Tokenizer       string
	MaxInputLength  int
	MaxOutputLength int
	Experiment      string
	Multitask       bool
}

// Filename encodes the fingerprint into a file name.
func (k CacheKey) Filename() string {
	name := fmt.Sprintf("cached_%s_%s_%s_%d_%d_%s",
		k.Dataset, k.Mode, k.Tokenizer, k.MaxInputLength, k.MaxOutputLength, k.Experiment)
	if k.Multitask {
		name += "_multitask"
	}
	return name + ".gob"
}

// Path returns the cache file path under the given data directory.
func (k CacheKey) Path(dir string) string {
	return filepath.Join(dir, k.Filename())
}

// cachePayload is the serialized blob: the two parallel sequences plus a
// format version.
type cachePayload struct {
	Version  int
	Examples []InputExample
	Features []InputFeature
}

// Load reads a cached (examples, features) pair from dir. A missing file is
// reported via os.IsNotExist on the returned error; any other failure
// (corrupt blob, version mismatch, length mismatch) is fatal to the caller.
// Recomputation only ever happens when the file is absent or an overwrite
// was explicitly requested.
func (k CacheKey) Load(dir string) ([]InputExample, []InputFeature, error) {
	path := k.Path(dir)
	fh, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer fh.Close()

	var payload cachePayload
	if err := gob.NewDecoder(fh).Decode(&payload); err != nil {
		return nil, nil, fmt.Errorf("decode cache %s: %w", path, err)
	}
	if payload.Version != cacheVersion {
		return nil, nil, fmt.Errorf("cache version mismatch in %s: cache=%d expected=%d",
			path, payload.Version, cacheVersion)
	}
	if len(payload.Examples) != len(payload.Features) {
		return nil, nil, fmt.Errorf("cache %s holds %d examples but %d features",
			path, len(payload.Examples), len(payload.Features))
	}
	return payload.Examples, payload.Features, nil
}

// Save persists the (examples, features) pair atomically: the blob is
// written to a temp file in the target directory, synced, then renamed into
// place, so a concurrent reader never observes a partial write.
func (k CacheKey) Save(dir string, examples []InputExample, features []InputFeature) error {
	if len(examples) != len(features) {
		return fmt.Errorf("refusing to cache %d examples with %d features", len(examples), len(features))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, k.Filename()+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()

	payload := cachePayload{
		Version:  cacheVersion,
		Examples: examples,
		Features: features,
	}
	if err := gob.NewEncoder(tmp).Encode(&payload); err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}
	if err := os.Rename(tmpName, k.Path(dir)); err != nil {
		return fmt.Errorf("rename temp cache into place: %w", err)
	}
	return nil
}
