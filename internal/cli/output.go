// Package cli renders search results and status for the command line client.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/precedex/precedex/internal/models"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one result per line.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat validates an -output flag value.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputCompact, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text, compact, or json", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	case OutputCompact:
		for _, result := range response.Results {
			fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n",
				result.Rank, result.Score, result.Source, result.CaseID, result.Title)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d similar case(s) in %dms\n\n", response.Total, response.QueryTime)
	for _, result := range response.Results {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | Source: %s\n", result.Rank, result.Score, result.Source)
		fmt.Fprintf(w, "ID: %s\n", result.CaseID)
		if result.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", result.Title)
		}
		if result.Snippet != "" {
			fmt.Fprintf(w, "\n%s\n", result.Snippet)
		}
		if result.Helper != nil {
			fmt.Fprintf(w, "\nOutcome: %s | Total cost: %.2f\n", result.Helper.Outcome, result.Helper.TotalCost)
			if result.Helper.Advice != "" {
				fmt.Fprintf(w, "Advice: %s\n", result.Helper.Advice)
			}
		}
		fmt.Fprintln(w)
	}
}
