// Command predictcheck exercises the annotation backend from the command
// line: it reports model status, requests predictions for one image or a
// batch, and prints the returned boxes.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"box-annotator/internal/annotation"
	"box-annotator/internal/backend"
)

func main() {
	server := flag.String("server", "http://localhost:5000", "Backend server URL")
	model := flag.String("model", "yolo", "Model to query")
	image := flag.String("image", "", "Image filename to predict")
	batch := flag.String("batch", "", "Comma-separated filenames for a batch prediction")
	timeout := flag.Duration("timeout", 30*time.Second, "Request timeout")
	flag.Parse()

	if *image == "" && *batch == "" {
		fmt.Println("Usage: predictcheck -image <file> | -batch <a.jpg,b.jpg> [-model yolo] [-server URL]")
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := backend.NewClient(*server, *timeout, logger, *model)
	ctx := context.Background()

	status, err := client.FetchModelStatus(ctx, *model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Model status failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model %s: available=%v training=%v", *model, status.Available, status.Training)
	if status.Training {
		fmt.Printf(" progress=%.0f%%", status.Progress*100)
	}
	fmt.Println()

	if !status.Available {
		fmt.Println("Model not available; nothing to predict")
		os.Exit(1)
	}

	if *image != "" {
		boxes, err := client.Predict(ctx, *image, *model)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Predict failed: %v\n", err)
			os.Exit(1)
		}
		printBoxes(*image, boxes)
		return
	}

	filenames := strings.Split(*batch, ",")
	results, err := client.PredictBatch(ctx, filenames, *model)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batch predict failed: %v\n", err)
		os.Exit(1)
	}
	for _, name := range filenames {
		printBoxes(name, results[name])
	}
}

func printBoxes(name string, boxes []annotation.BoundingBox) {
	fmt.Printf("\n%s: %d boxes\n", name, len(boxes))
	for i, b := range boxes {
		fmt.Printf("  %2d. %-12s conf=%.2f  x=%.3f y=%.3f w=%.3f h=%.3f\n",
			i+1, b.Label, b.Confidence, b.X, b.Y, b.Width, b.Height)
	}
}
