// Command render writes the dashboard artifacts to disk: static district
// maps, the department chart, GeoJSON layers and the interactive map pages.
//
// Usage:
//
//	go run ./cmd/render all --out out
//	go run ./cmd/render proximity --departments LIMA,LORETO --radius 10000
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
