// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Mentorlik Contributors

// Command gen-schema writes the JSON Schema of every API request body.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/mentorlik/mentorlik/internal/api"
)

func main() {
	schemas := api.RequestSchemas()

	outDir := filepath.Join("schemas", "api")
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
		os.Exit(1)
	}

	names := make([]string, 0, len(schemas))
	for name := range schemas {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		outPath := filepath.Join(outDir, name+".schema.json")
		if err := os.WriteFile(outPath, schemas[name], 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s\n", outPath)
	}
}
