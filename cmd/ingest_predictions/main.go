package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/powerlens-backend/internal/app"
	"github.com/yungbote/powerlens-backend/internal/inference/client"
	"github.com/yungbote/powerlens-backend/internal/platform/dbctx"
)

// ingest_predictions seeds AI_ANALYSIS sessions from inference-script JSON lines.
func main() {
	var (
		inspection  string
		file        string
		concurrency int
		dryRun      bool
	)
	flag.StringVar(&inspection, "inspection", "", "inspection id the predictions belong to")
	flag.StringVar(&file, "file", "-", "JSON lines file, one prediction per line (- for stdin)")
	flag.IntVar(&concurrency, "concurrency", 4, "max predictions ingested in parallel")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and print without writing")
	flag.Parse()

	inspectionID, err := uuid.Parse(strings.TrimSpace(inspection))
	if err != nil || inspectionID == uuid.Nil {
		fmt.Fprintln(os.Stderr, "-inspection must be a valid uuid")
		os.Exit(2)
	}

	preds, err := readAll(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read predictions: %v\n", err)
		os.Exit(1)
	}
	if dryRun {
		for i, p := range preds {
			fmt.Printf("[%d] image=%s label=%q detections=%d\n", i+1, p.Image, p.Label, len(p.Detections))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if concurrency < 1 {
		concurrency = 1
	}
	var records atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, p := range preds {
		g.Go(func() error {
			res, err := a.Services.Predictions.Ingest(dbctx.Context{Ctx: gctx}, inspectionID, p)
			if err != nil {
				return fmt.Errorf("prediction %d (%s): %w", i+1, p.Image, err)
			}
			records.Add(int64(len(res.Records)))
			a.Log.Info("prediction ingested", "session_id", res.Session.ID, "image", p.Image, "records", len(res.Records))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		a.Log.Error("ingest failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	fmt.Printf("ingested %d predictions, %d records into inspection %s\n", len(preds), records.Load(), inspectionID)
}

func readAll(path string) ([]*client.Prediction, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	var out []*client.Prediction
	err := client.ReadPredictions(r, func(_ int, p *client.Prediction) error {
		out = append(out, p)
		return nil
	})
	return out, err
}
