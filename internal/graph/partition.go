package graph

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/coldog/jsroll/internal/options"
	"github.com/coldog/jsroll/pkg/module"
	"github.com/coldog/jsroll/pkg/resolve"
)

// boundary is a chunk root: either a true entry, a dynamic-import target
// (which earns its own "entry-facade" chunk exactly like a real entry), or
// a manualChunks group. Every reachable module ends up owned by exactly one
// boundary, or -- when reached by two or more root boundaries via static
// imports -- split into its own shared chunk.
type boundary struct {
	key       string
	isRoot    bool
	rootID    string
	entryName string // set when isRoot and this root is a true entry
	groupName string
	seeds     []string
}

// partitionDefault implements the non-preserveModules chunking algorithm:
// one facade chunk per entry and per dynamic-import target, manualChunks
// groups pinned as requested, and shared modules reached by more than one
// root extracted into their own chunk instead of duplicated into each.
func (g *Graph) partitionDefault(refs []entryRef, manualChunks options.ManualChunksFunc, inlineDynamicImports bool) ([]*Chunk, error) {
	g.mu.Lock()
	modules := g.modules
	g.mu.Unlock()

	manualAssign := map[string]string{}
	if manualChunks != nil {
		for id := range modules {
			if group := manualChunks(id); group != "" {
				manualAssign[id] = group
			}
		}
	}

	entryIDs := map[string]bool{}
	var boundaries []*boundary
	for _, r := range refs {
		entryIDs[r.id] = true
		boundaries = append(boundaries, &boundary{
			key: "root:" + r.id, isRoot: true, rootID: r.id, entryName: r.name, seeds: []string{r.id},
		})
	}

	if !inlineDynamicImports {
		dynTargets := discoverDynamicTargets(modules)
		for _, id := range dynTargets {
			if entryIDs[id] || manualAssign[id] != "" {
				continue
			}
			entryIDs[id] = true
			boundaries = append(boundaries, &boundary{key: "root:" + id, isRoot: true, rootID: id, seeds: []string{id}})
		}
	}

	groupSeeds := map[string][]string{}
	for id, group := range manualAssign {
		groupSeeds[group] = append(groupSeeds[group], id)
	}
	var groupNames []string
	for name := range groupSeeds {
		groupNames = append(groupNames, name)
	}
	sort.Strings(groupNames)
	for _, name := range groupNames {
		seeds := append([]string(nil), groupSeeds[name]...)
		sort.Strings(seeds)
		boundaries = append(boundaries, &boundary{key: "manual:" + name, groupName: name, seeds: seeds})
	}

	isBoundaryModule := map[string]*boundary{}
	for _, b := range boundaries {
		for _, s := range b.seeds {
			isBoundaryModule[s] = b
		}
	}

	owners := map[string]map[string]bool{}
	for _, b := range boundaries {
		if !b.isRoot {
			continue // manual groups own exactly their pinned seeds, no walk needed
		}
		visited := map[string]bool{}
		var walk func(id string)
		walk = func(id string) {
			if visited[id] {
				return
			}
			visited[id] = true
			if id != b.rootID {
				if owners[id] == nil {
					owners[id] = map[string]bool{}
				}
				owners[id][b.key] = true
			}
			if other := isBoundaryModule[id]; other != nil && other != b {
				return
			}
			mod := modules[id]
			if mod == nil {
				return
			}
			for _, spec := range mod.StaticSpecifiers() {
				childID, err := resolve.Resolve(filepath.Dir(id), spec)
				if err != nil {
					continue
				}
				walk(childID)
			}
			if inlineDynamicImports {
				// No separate chunk exists for dynamic-import targets, so
				// fold them into the (sole, per the inlineDynamicImports
				// invariant) entry chunk exactly like a static dependency.
				for _, spec := range mod.DynamicSpecifiers() {
					childID, err := resolve.Resolve(filepath.Dir(id), spec)
					if err != nil {
						continue
					}
					walk(childID)
				}
			}
		}
		walk(b.rootID)
	}

	moduleToChunk := map[string]*Chunk{}
	chunkByKey := map[string]*Chunk{}
	var chunks []*Chunk

	for _, b := range boundaries {
		var c *Chunk
		if b.isRoot {
			c = &Chunk{g: g, entryModuleID: b.rootID, isFacade: true, name: b.entryName}
			if c.name == "" {
				c.name = entryName(b.rootID)
			}
		} else {
			c = &Chunk{g: g, isFacade: false, name: b.groupName}
		}
		c.modules = append(c.modules, b.seeds...)
		chunks = append(chunks, c)
		chunkByKey[b.key] = c
		for _, s := range b.seeds {
			moduleToChunk[s] = c
		}
	}

	shared := map[string][]string{} // ownerKey -> module ids
	var sharedKeys []string
	var moduleIDs []string
	for id := range owners {
		moduleIDs = append(moduleIDs, id)
	}
	sort.Strings(moduleIDs)
	for _, id := range moduleIDs {
		if isBoundaryModule[id] != nil {
			continue
		}
		ownerSet := owners[id]
		if len(ownerSet) == 1 {
			for k := range ownerSet {
				if c := chunkByKey[k]; c != nil {
					c.modules = append(c.modules, id)
					moduleToChunk[id] = c
				}
			}
			continue
		}
		key := ownerKey(ownerSet)
		if _, ok := shared[key]; !ok {
			sharedKeys = append(sharedKeys, key)
		}
		shared[key] = append(shared[key], id)
	}
	sort.Strings(sharedKeys)
	for _, key := range sharedKeys {
		ids := append([]string(nil), shared[key]...)
		sort.Strings(ids)
		c := &Chunk{g: g, isFacade: false, name: "chunk"}
		c.modules = ids
		chunks = append(chunks, c)
		for _, id := range ids {
			moduleToChunk[id] = c
		}
	}

	g.linkChunks(chunks, modules, moduleToChunk)
	return chunks, nil
}

func ownerKey(owners map[string]bool) string {
	keys := make([]string, 0, len(owners))
	for k := range owners {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "|")
}

// discoverDynamicTargets resolves every dynamic import specifier found
// across the already-parsed module set to its target module id, in a
// deterministic (sorted-by-importer) order.
func discoverDynamicTargets(modules map[string]*module.Module) []string {
	var out []string
	seen := map[string]bool{}
	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		for _, spec := range modules[id].DynamicSpecifiers() {
			childID, err := resolve.Resolve(filepath.Dir(id), spec)
			if err != nil {
				continue
			}
			if !seen[childID] {
				seen[childID] = true
				out = append(out, childID)
			}
		}
	}
	return out
}

// partitionPreserveModules makes one chunk per discovered module, mirroring
// the source tree instead of grouping by reachability.
func (g *Graph) partitionPreserveModules(refs []entryRef) []*Chunk {
	g.mu.Lock()
	modules := g.modules
	g.mu.Unlock()

	entryIDs := map[string]bool{}
	for _, r := range refs {
		entryIDs[r.id] = true
	}

	ids := make([]string, 0, len(modules))
	for id := range modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	moduleToChunk := map[string]*Chunk{}
	var chunks []*Chunk
	for _, id := range ids {
		c := &Chunk{g: g, entryModuleID: id, isFacade: entryIDs[id], name: entryName(id), preserveModules: true}
		c.modules = []string{id}
		chunks = append(chunks, c)
		moduleToChunk[id] = c
	}

	g.linkChunks(chunks, modules, moduleToChunk)
	return chunks
}

// OptimizeChunks is the post-partition consolidation pass: when every
// non-facade chunk together still has fewer members than groupingSize,
// they're merged into a single shared chunk instead of staying split. One
// threshold check, not a bin-packer weighing pairwise cross-import affinity.
func (g *Graph) OptimizeChunks(chunks []*Chunk, groupingSize int) []*Chunk {
	if groupingSize <= 0 {
		return chunks
	}

	var facades []*Chunk
	var shared []*Chunk
	for _, c := range chunks {
		if c.IsEntryModuleFacade() {
			facades = append(facades, c)
		} else {
			shared = append(shared, c)
		}
	}
	if len(shared) < 2 {
		return chunks
	}

	total := 0
	for _, c := range shared {
		total += len(c.modules)
	}
	if total >= groupingSize {
		return chunks
	}

	merged := &Chunk{g: g, isFacade: false, name: "chunk"}
	for _, c := range shared {
		merged.modules = append(merged.modules, c.modules...)
	}
	sort.Strings(merged.modules)

	out := append(append([]*Chunk(nil), facades...), merged)

	g.mu.Lock()
	modules := g.modules
	g.mu.Unlock()
	moduleToChunk := map[string]*Chunk{}
	for _, c := range out {
		for _, id := range c.modules {
			moduleToChunk[id] = c
		}
	}
	g.linkChunks(out, modules, moduleToChunk)
	return out
}

// linkChunks computes each chunk's cross-chunk static and dynamic
// dependencies, consumed by Chunk.Render to emit the right sibling-file
// references once every chunk has been named.
func (g *Graph) linkChunks(chunks []*Chunk, modules map[string]*module.Module, moduleToChunk map[string]*Chunk) {
	seenEdge := map[*Chunk]map[*Chunk]bool{}
	for _, c := range chunks {
		for _, id := range c.modules {
			mod := modules[id]
			if mod == nil {
				continue
			}
			for _, spec := range mod.StaticSpecifiers() {
				childID, err := resolve.Resolve(filepath.Dir(id), spec)
				if err != nil {
					continue
				}
				target := moduleToChunk[childID]
				if target == nil || target == c {
					continue
				}
				if seenEdge[c] == nil {
					seenEdge[c] = map[*Chunk]bool{}
				}
				if seenEdge[c][target] {
					continue
				}
				seenEdge[c][target] = true
				c.crossImports = append(c.crossImports, target)
			}
			for _, d := range mod.Dynamic {
				if d.Unresolvable || d.Specifier == "" {
					continue
				}
				childID, err := resolve.Resolve(filepath.Dir(id), d.Specifier)
				if err != nil {
					continue
				}
				target := moduleToChunk[childID]
				if target == nil || target == c {
					continue
				}
				c.dynamicImports = append(c.dynamicImports, target)
			}
		}
	}
}
