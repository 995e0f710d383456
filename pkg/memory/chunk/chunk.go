// Package chunk implements domain routing by keyword substring: storing a
// memory picks one chunk directory, recalling a query fans out to several.
// Chunks are physical directories created lazily on first store.
//
// Grounded directly on wheeler_memory/chunking.py's CHUNK_KEYWORDS table and
// select_chunk/select_recall_chunks routing, and on internal/config's
// path-resolution style (os-rooted data directory with lazily created
// subtrees).
package chunk

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Default is the fallback chunk used when nothing matches.
const Default = "general"

// MaxRecallChunks bounds how many keyword-matched chunks SelectRecall
// returns before the general/on-disk union is applied.
const MaxRecallChunks = 3

// Keywords is the fixed chunk-name to keyword-list routing table.
var Keywords = map[string][]string{
	"code": {
		"python", "rust", "code", "bug", "debug", "compile", "function",
		"class", "import", "git", "commit", "api", "server", "deploy",
		"docker", "test", "refactor", "script", "variable", "error",
		"exception", "lint", "cargo", "npm", "pip", "branch", "merge",
		"syntax", "frontend", "backend", "database", "sql", "html", "css",
		"javascript", "typescript",
	},
	"hardware": {
		"printer", "3d print", "solder", "circuit", "arduino", "raspberry",
		"gpio", "wire", "pcb", "resistor", "capacitor", "motor", "sensor",
		"voltage", "ampere", "oscilloscope", "multimeter", "firmware",
		"hardware", "cnc", "laser", "filament", "nozzle", "extruder",
		"bambu", "ender", "stepper",
	},
	"daily_tasks": {
		"grocery", "groceries", "dentist", "doctor", "appointment",
		"schedule", "meeting", "call", "email", "buy", "pick up",
		"todo", "errand", "laundry", "clean", "cook", "dinner",
		"lunch", "breakfast", "workout", "exercise", "gym",
	},
	"science": {
		"physics", "chemistry", "biology", "math", "equation", "theorem",
		"hypothesis", "experiment", "quantum", "relativity", "entropy",
		"molecule", "atom", "cell", "genome", "evolution", "neuron",
		"calculus", "algebra", "statistics", "probability",
	},
	"meta": {
		"wheeler", "memory system", "attractor", "brick", "cellular automata",
		"ca dynamics", "rotation", "convergence", "oscillation", "chunk",
	},
}

// orderedChunkNames is Keywords' names in a fixed order, so tie-breaking
// and iteration order don't depend on Go's randomized map iteration.
var orderedChunkNames = []string{"code", "hardware", "daily_tasks", "science", "meta"}

func hitCount(lower string, keywords []string) int {
	hits := 0
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

// SelectStore returns the single best chunk for storing text: the chunk
// with the most keyword hits, ties keep Default, no hits return Default.
func SelectStore(text string) string {
	lower := strings.ToLower(text)
	best := Default
	bestHits := 0
	tied := false

	for _, name := range orderedChunkNames {
		hits := hitCount(lower, Keywords[name])
		switch {
		case hits > bestHits:
			bestHits = hits
			best = name
			tied = false
		case hits == bestHits && hits > 0:
			tied = true
		}
	}
	if tied || bestHits == 0 {
		return Default
	}
	return best
}

// chunkScore pairs a chunk name with its keyword hit count.
type chunkScore struct {
	name string
	hits int
}

// SelectRecall returns the chunks to search for query: every
// keyword-matched chunk (positive score, capped at MaxRecallChunks, highest
// score first), always unioned with Default, and further unioned with
// existingChunks (on-disk chunks discovered independently of the router) so
// memories stored under a chunk the router no longer favors stay reachable.
func SelectRecall(query string, existingChunks []string) []string {
	lower := strings.ToLower(query)

	var scored []chunkScore
	for _, name := range orderedChunkNames {
		hits := hitCount(lower, Keywords[name])
		if hits > 0 {
			scored = append(scored, chunkScore{name: name, hits: hits})
		}
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].hits > scored[j].hits })

	if len(scored) > MaxRecallChunks {
		scored = scored[:MaxRecallChunks]
	}

	seen := make(map[string]bool, len(scored)+1+len(existingChunks))
	var result []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			result = append(result, name)
		}
	}

	for _, s := range scored {
		add(s.name)
	}
	add(Default)
	for _, name := range existingChunks {
		add(name)
	}

	return result
}

// Dir returns (and creates) the directory subtree for chunk under root,
// including its attractors and bricks subdirectories.
func Dir(root, name string) (string, error) {
	chunkDir := filepath.Join(root, "chunks", name)
	if err := os.MkdirAll(filepath.Join(chunkDir, "attractors"), 0o755); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(chunkDir, "bricks"), 0o755); err != nil {
		return "", err
	}
	return chunkDir, nil
}

// List scans root/chunks for populated chunk directories (those containing
// an index.json), sorted by name.
func List(root string) ([]string, error) {
	chunksRoot := filepath.Join(root, "chunks")
	entries, err := os.ReadDir(chunksRoot)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(filepath.Join(chunksRoot, e.Name(), "index.json")); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// FindBrick searches every chunk under root for a brick file named
// id+".brick", returning its path or "" if none is found.
func FindBrick(root, id string) (string, error) {
	chunksRoot := filepath.Join(root, "chunks")
	entries, err := os.ReadDir(chunksRoot)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		candidate := filepath.Join(chunksRoot, e.Name(), "bricks", id+".brick")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", nil
}
