package asset

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Emitter is the per-call asset-emission surface installed for the
// generateBundle hook. It owns a snapshot of the standing asset map plus
// anything a plugin emits during the hook, all scoped to one generate call:
// a later generate on the same handle sees the standing assets again but
// never this call's emissions.
type Emitter struct {
	pattern string
	used    map[string]bool
	assets  map[string]*Asset
	order   []string
}

// NewEmitter snapshots `standing` (the graph's assets-by-id map at the time
// generateBundle starts) and prepares emission against pattern. usedNames
// should be seeded with every file name already present in the bundle so
// lazily finalized assets can't collide with rendered chunks.
func NewEmitter(standing map[string]*Asset, pattern string, usedNames map[string]bool) *Emitter {
	e := &Emitter{pattern: pattern, used: usedNames, assets: map[string]*Asset{}}
	ids := make([]string, 0, len(standing))
	for id := range standing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		a := standing[id]
		e.assets[id] = &Asset{Name: a.Name, Source: a.Source, FileName: a.FileName}
		e.order = append(e.order, id)
	}
	return e
}

// EmitAsset registers a new asset under a fresh reference id and returns
// that id. Source may be nil; the plugin can attach it later with
// SetAssetSource, but the asset must have source bytes by the time the
// generate call finalizes.
func (e *Emitter) EmitAsset(name string, source []byte) string {
	id := uuid.NewString()
	e.assets[id] = &Asset{Name: name, Source: source}
	e.order = append(e.order, id)
	return id
}

// SetAssetSource attaches source bytes to a previously emitted asset.
func (e *Emitter) SetAssetSource(id string, source []byte) error {
	a, ok := e.assets[id]
	if !ok {
		return fmt.Errorf("asset: unknown asset reference %q", id)
	}
	if a.Finalized() {
		return fmt.Errorf("asset: cannot set source on %q after it was finalized", a.Name)
	}
	a.Source = source
	return nil
}

// GetAssetFileName returns the finalized file name for id, finalizing it
// eagerly when the plugin asks before the end-of-generate pass would have.
func (e *Emitter) GetAssetFileName(id string) (string, error) {
	a, ok := e.assets[id]
	if !ok {
		return "", fmt.Errorf("asset: unknown asset reference %q", id)
	}
	if !a.Finalized() {
		if err := e.finaliseOne(a); err != nil {
			return "", err
		}
	}
	return a.FileName, nil
}

// FinaliseAll assigns a file name to every snapshot/emitted asset that still
// lacks one. An asset left without source bytes fails the whole generate
// call.
func (e *Emitter) FinaliseAll() error {
	for _, id := range e.order {
		if a := e.assets[id]; !a.Finalized() {
			if err := e.finaliseOne(a); err != nil {
				return err
			}
		}
	}
	return nil
}

// Each visits every snapshot/emitted asset in a stable order.
func (e *Emitter) Each(fn func(a *Asset) error) error {
	for _, id := range e.order {
		if err := fn(e.assets[id]); err != nil {
			return err
		}
	}
	return nil
}

func (e *Emitter) finaliseOne(a *Asset) error {
	if len(a.Source) == 0 {
		return fmt.Errorf("%w: %q", ErrUnfinalized, a.Name)
	}
	name := dedupe(patternFileName(a, e.pattern), e.used)
	e.used[name] = true
	a.FileName = name
	return nil
}
