package main

import (
	"context"
	"fmt"
	"os"

	"scanfieldcal"

	"go.viam.com/rdk/logging"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <manifest.yaml> <output-folder>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  The manifest names the tile folder, the scan grid and the scan-master calibration\n")
		os.Exit(1)
	}

	logger := logging.NewLogger("scanfieldstitch")

	manifest, err := scanfieldcal.ReadStitchManifest(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading manifest: %v\n", err)
		os.Exit(1)
	}

	res, err := manifest.Stitch(context.Background(), os.Args[2], logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error stitching: %v\n", err)
		os.Exit(1)
	}

	pasted := 0
	for _, t := range res.Tiles {
		if t.Pasted {
			pasted++
		}
	}
	fmt.Printf("Stitched %d of %d tiles into %dx%d\n", pasted, len(res.Tiles), res.Parameters.Width, res.Parameters.Height)
	if res.Folder == "" {
		fmt.Fprintf(os.Stderr, "Scan field image was not written\n")
		os.Exit(1)
	}
	fmt.Printf("Saved %s\n", res.ConfigPath)
}
