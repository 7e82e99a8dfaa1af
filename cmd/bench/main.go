package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/aretw0/verbatim"
	"github.com/aretw0/verbatim/pkg/core"
)

var words = strings.Fields(`the of and a to in is was for on that with as by at from
report analysis result method data study sample model value table figure section
increase decrease measure process system control rate level group period change
water energy market price cost growth network signal error test design theory`)

// essay builds a pseudo-random text of n words.
func essay(r *rand.Rand, n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = words[r.Intn(len(words))]
	}
	return strings.Join(out, " ")
}

func main() {
	count := flag.Int("count", 200, "Number of reports to generate")
	size := flag.Int("words", 800, "Words per report")
	adapter := flag.String("adapter", verbatim.AdapterFS, "Storage adapter: fs or sqlite")
	keep := flag.Bool("keep", false, "Keep the benchmark vault after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "verbatim_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))
	vault, err := verbatim.New(benchDir, verbatim.WithAdapter(*adapter), verbatim.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer vault.Close()
	ctx := context.Background()

	fmt.Printf("Generating %d reports of %d words in %s...\n", *count, *size, benchDir)
	r := rand.New(rand.NewSource(1))
	startGen := time.Now()
	var lastID string
	var base string
	for i := 0; i < *count; i++ {
		text := essay(r, *size)
		if i == *count-1 && base != "" {
			// The last report reuses half of the first one.
			text = base[:len(base)/2] + " " + text[len(text)/2:]
		}
		if i == 0 {
			base = text
		}
		doc, err := vault.Service.Ingest(ctx, fmt.Sprintf("report-%04d", i), text, nil)
		if err != nil {
			panic(err)
		}
		lastID = doc.ID
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	fmt.Println("Running ListDocuments...")
	startList := time.Now()
	list, err := vault.Service.ListDocuments(ctx)
	if err != nil {
		panic(err)
	}
	listDuration := time.Since(startList)

	fmt.Println("Running check of the last report...")
	startCheck := time.Now()
	check, err := vault.Service.RunCheck(ctx, lastID)
	if err != nil {
		panic(err)
	}
	checkDuration := time.Since(startCheck)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d reports, %s):\n", len(list), *adapter)
	fmt.Printf("  List:  %v\n", listDuration)
	fmt.Printf("  Check: %v (similarity %s%%, %d matches)\n", checkDuration, core.FormatSimilarity(check.Similarity), len(check.Matches))
	fmt.Printf("--------------------------------------------------\n")
}
