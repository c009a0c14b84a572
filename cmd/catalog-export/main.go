// catalog-export writes the explorer catalogs to an xlsx workbook.
//
// Usage:
//
//	STORAGE_PROVIDER=fs DATA_DIR=./data go run ./cmd/catalog-export -out catalogs.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/gutsdata/explorer_backend/catalog"
	"github.com/gutsdata/explorer_backend/store"
)

func main() {
	out := flag.String("out", "guts-catalogs.xlsx", "Output workbook path")
	flag.Parse()

	ctx := context.Background()
	docs, err := store.Open(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open document store: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := catalog.NewReader(store.NewRepository(docs)).WriteWorkbook(ctx, f); err != nil {
		_ = f.Close()
		_ = os.Remove(*out)
		fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close %s: %v\n", *out, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}
