//go:build ignore

// Package main generates a synthetic document tree for benchmarking scans.
// Usage: go run scripts/generate-test-tree.go -files 10000 -output testdata/tree
//
// Then: fsaudit scan testdata/tree --no-daemon
package main

import (
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	numFiles  = flag.Int("files", 1000, "Number of files to generate")
	outputDir = flag.String("output", "testdata/tree", "Output directory")
	maxDepth  = flag.Int("depth", 4, "Maximum folder depth below the root")
	seed      = flag.Uint64("seed", 42, "Random seed for reproducibility")
)

// Weighted roughly like a shared office drive.
var extensions = []struct {
	ext    string
	weight int
}{
	{".pdf", 25},
	{".docx", 20},
	{".xlsx", 15},
	{".csv", 8},
	{".txt", 8},
	{".pptx", 6},
	{".png", 6},
	{".jpg", 5},
	{".PDF", 3},
	{".tar.gz", 2},
	{"", 2},
}

var (
	departments = []string{"finance", "hr", "legal", "marketing", "engineering", "operations", "sales"}
	topics      = []string{"contracts", "invoices", "reports", "budgets", "policies", "minutes", "archive", "drafts"}
	years       = []string{"2021", "2022", "2023", "2024", "2025"}
	nouns       = []string{"budget", "plan", "summary", "review", "proposal", "invoice", "memo", "forecast", "audit", "notes"}
)

func main() {
	flag.Parse()
	rng := rand.New(rand.NewPCG(*seed, *seed))

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generating %d files in %s...\n", *numFiles, *outputDir)

	now := time.Now()
	generated := 0
	for i := 0; i < *numFiles; i++ {
		dir := filepath.Join(*outputDir, randomFolder(rng))
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", dir, err)
			continue
		}

		name := fmt.Sprintf("%s-%s-%05d%s", pick(rng, nouns), pick(rng, years), i, randomExtension(rng))
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, make([]byte, rng.IntN(4096)), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			continue
		}

		// Spread modification times over the last three years.
		mtime := now.Add(-time.Duration(rng.Int64N(int64(3 * 365 * 24 * time.Hour))))
		if err := os.Chtimes(path, mtime, mtime); err != nil {
			fmt.Fprintf(os.Stderr, "Error setting times on %s: %v\n", path, err)
		}
		generated++
	}

	fmt.Printf("Generated %d files successfully.\n", generated)
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.IntN(len(pool))]
}

// randomFolder returns a relative folder between zero and maxDepth levels deep.
func randomFolder(rng *rand.Rand) string {
	depth := rng.IntN(*maxDepth + 1)
	parts := make([]string, 0, depth)
	for level := 0; level < depth; level++ {
		switch level {
		case 0:
			parts = append(parts, pick(rng, departments))
		case 1:
			parts = append(parts, pick(rng, topics))
		case 2:
			parts = append(parts, pick(rng, years))
		default:
			parts = append(parts, strings.ToUpper(pick(rng, topics)[:1])+fmt.Sprintf("%02d", rng.IntN(12)+1))
		}
	}
	return filepath.Join(parts...)
}

func randomExtension(rng *rand.Rand) string {
	total := 0
	for _, e := range extensions {
		total += e.weight
	}
	n := rng.IntN(total)
	for _, e := range extensions {
		if n < e.weight {
			return e.ext
		}
		n -= e.weight
	}
	return ""
}
