package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"scanfieldcal"

	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/rimage"
)

func main() {
	threshold := flag.Int("threshold", 0, "binarization threshold, 0 to search")
	minSquare := flag.Int("min-square", 0, "smallest chessboard square in pixels")
	squareMM := flag.Float64("square-mm", 0, "chessboard square side in mm, to report pixels per mm")
	preview := flag.Int("preview", 0, "write the image of this recognizer stage instead (1-6)")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <input.jpg> [output.png]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  If output is not specified, it will be <input>_output.png\n")
		flag.PrintDefaults()
		os.Exit(1)
	}

	inputFile := flag.Arg(0)
	outputFile := flag.Arg(1)
	if outputFile == "" {
		ext := filepath.Ext(inputFile)
		outputFile = strings.TrimSuffix(inputFile, ext) + "_output.png"
	}

	logger := logging.NewLogger("chessboardfinder")
	if *debug {
		logger.SetLevel(logging.DEBUG)
	}

	input, err := rimage.ReadImageFromFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Image size: %dx%d\n", input.Bounds().Dx(), input.Bounds().Dy())

	opts := scanfieldcal.ChessboardOptions{
		Threshold:     *threshold,
		MinSquareSize: *minSquare,
		Preview:       scanfieldcal.PreviewStage(*preview),
	}
	res := scanfieldcal.RecognizeChessboard(input, opts, logger)

	if res.Valid {
		fmt.Printf("Found %d rows x %d columns at threshold %d\n", res.Grid.NumRows(), res.Grid.NumColumns(), res.Threshold)
		fmt.Printf("  Scale factor: %.3f px per square\n", res.ScaleFactor())
		if *squareMM > 0 {
			fmt.Printf("  Pixel per mm: %.4f\n", res.PixelPerMM(*squareMM))
		}
	} else {
		fmt.Printf("No chessboard found (%d raw corners, %d rejected)\n", len(res.RawCorners), len(res.InvalidCorners))
	}

	if res.Preview != nil {
		err = rimage.WriteImageToFile(outputFile, res.Preview)
	} else {
		err = rimage.WriteImageToFile(outputFile, scanfieldcal.ChessboardDebugImage(input, res, *squareMM))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output image: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Saved output image to %s\n", outputFile)
	if !res.Valid {
		os.Exit(2)
	}
}
