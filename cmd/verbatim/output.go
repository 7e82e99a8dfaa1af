package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/verbatim/pkg/core"
	"github.com/aretw0/verbatim/pkg/textdiff"
)

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// writeCheck prints a check with its matches and indented previews.
func writeCheck(w io.Writer, check core.Check) {
	fmt.Fprintf(w, "Check %s of %s: %s", check.ID, check.DocumentID, check.Status)
	if check.Status == core.CheckFailed {
		fmt.Fprintf(w, " (%s)\n", check.Error)
		return
	}
	fmt.Fprintf(w, ", similarity %s%%\n", core.FormatSimilarity(check.Similarity))
	if len(check.Matches) == 0 {
		fmt.Fprintln(w, "  no matches")
		return
	}
	for i, m := range check.Matches {
		fmt.Fprintf(w, "%3d. %6.2f%%  %s (%s)\n", i+1, m.Similarity, m.DocumentName, m.DocumentID)
		for _, line := range strings.Split(m.DiffPreview, "\n") {
			if line != "" {
				fmt.Fprintf(w, "       %s\n", line)
			}
		}
	}
}

// writeSegments renders a diff in word-diff style: [-removed-]{+added+}.
func writeSegments(w io.Writer, segments []textdiff.Segment) {
	var b strings.Builder
	for _, s := range segments {
		switch s.Kind {
		case textdiff.Added:
			b.WriteString("{+" + s.Text + "+}")
		case textdiff.Removed:
			b.WriteString("[-" + s.Text + "-]")
		default:
			b.WriteString(s.Text)
		}
	}
	fmt.Fprintln(w, b.String())
}
