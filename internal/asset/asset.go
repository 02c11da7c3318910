// Package asset implements the Asset finalizer: assigning a hash-bearing
// file name to an extension-emitted asset and inserting it into the bundle.
package asset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/coldog/jsroll/internal/bundle"
)

// ErrUnfinalized is returned by FinaliseAsset's caller-visible contract
// when an asset has no source bytes to hash.
var ErrUnfinalized = errors.New("asset: cannot finalize asset with no source")

// Asset is a named binary/text blob not produced by rendering. Name is the
// extension-chosen logical name (often just the original path); Source is
// the content; FileName is set once finalized.
type Asset struct {
	Name     string
	Source   []byte
	FileName string
}

// Finalized reports whether FileName has been assigned.
func (a *Asset) Finalized() bool {
	return a.FileName != ""
}

// FinaliseAsset computes the asset's output file name from `pattern`
// ([name]/[hash]/[extname] placeholders) and its content hash, then
// inserts it into bundle as an AssetEntry. usedNames tracks collisions the
// same way chunk id generation does.
func FinaliseAsset(a *Asset, b *bundle.Bundle, pattern string, usedNames map[string]bool) error {
	if a == nil {
		return errors.New("asset: nil asset")
	}
	if len(a.Source) == 0 {
		return fmt.Errorf("%w: %q", ErrUnfinalized, a.Name)
	}

	name := dedupe(patternFileName(a, pattern), usedNames)
	usedNames[name] = true

	a.FileName = name
	b.Set(name, &bundle.AssetEntry{FileName: name, Source: a.Source, IsAsset: true})
	return nil
}

func contentHash(src []byte) string {
	h := sha256.Sum256(src)
	return hex.EncodeToString(h[:])[:8]
}

// patternFileName substitutes [name]/[hash]/[extname] from the asset's
// logical name and content hash, before collision deduplication.
func patternFileName(a *Asset, pattern string) string {
	ext := filepath.Ext(a.Name)
	base := strings.TrimSuffix(filepath.Base(a.Name), ext)
	r := strings.NewReplacer(
		"[name]", base,
		"[hash]", contentHash(a.Source),
		"[extname]", ext,
	)
	return r.Replace(pattern)
}

func dedupe(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s%d%s", base, i, ext)
		if !used[candidate] {
			return candidate
		}
	}
}
