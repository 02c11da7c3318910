package graph

import "os"

// readFile is the single point where the Graph touches the filesystem to
// load a module's source. It is a plain function that always reads from
// disk.
func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
