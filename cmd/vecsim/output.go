package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/catalog"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	muted   = color.New(color.FgHiBlack)
)

func printRecommendations(w io.Writer, title string, recs []catalog.Recommendation) {
	_, _ = heading.Fprintln(w, title)
	if len(recs) == 0 {
		_, _ = muted.Fprintln(w, "  no matches")
		return
	}
	for i, r := range recs {
		fmt.Fprintf(w, "  %2d. %-12s %-40s ", i+1, r.ID, r.Name())
		_, _ = success.Fprintf(w, "%.3f", r.Similarity)
		_, _ = muted.Fprintf(w, "  %s  stock=%d  price=%.2f\n", r.Metadata[catalog.MetaCategory], r.Stock(), r.Price())
	}
}

func printReport(w io.Writer, report catalog.IngestReport, snapshotName string) {
	_, _ = heading.Fprintln(w, "Ingest")
	_, _ = success.Fprintf(w, "  indexed %d products", report.Indexed)
	fmt.Fprintf(w, " in %s\n", report.Took.Round(1e6))
	_, _ = muted.Fprintf(w, "  skipped %d existing, %d without description\n", report.SkippedExisting, report.SkippedNoDescription)
	if snapshotName != "" {
		_, _ = muted.Fprintf(w, "  published %s\n", snapshotName)
	}
}

func printStats(w io.Writer, current string, s vecsim.Stats) {
	_, _ = heading.Fprintln(w, "Engine")
	fmt.Fprintf(w, "  snapshot:   %s\n", current)
	fmt.Fprintf(w, "  records:    %d\n", s.Records)
	fmt.Fprintf(w, "  dimension:  %d\n", s.Dimension)
	fmt.Fprintf(w, "  metric:     %s\n", s.Metric)
	fmt.Fprintf(w, "  metadata:   %d keys\n", s.MetadataKeys)
	for _, idx := range s.Indexes {
		_, _ = heading.Fprintf(w, "Index %s\n", idx.Metric)
		fmt.Fprintf(w, "  nodes:      %d\n", idx.Nodes)
		fmt.Fprintf(w, "  staleness:  %d / %d\n", idx.Staleness, idx.Threshold)
		fmt.Fprintf(w, "  max level:  %d\n", idx.Graph.MaxLevel)
	}
}
