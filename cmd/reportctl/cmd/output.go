package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// Output format constants.
const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// printStructured writes v as JSON or YAML when the output flag asks for
// it and reports whether it did.
func printStructured(v any) bool {
	switch flagOutput {
	case outputJSON:
		printJSON(v)
		return true
	case outputYAML:
		printYAML(v)
		return true
	default:
		return false
	}
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printYAML(v any) {
	data, err := yaml.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: marshal YAML: %v\n", err)
		return
	}
	fmt.Print(string(data))
}

type tableWriter struct {
	w *tabwriter.Writer
}

func newTable(headers ...string) *tableWriter {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	return &tableWriter{w: w}
}

func (t *tableWriter) AddRow(values ...string) {
	fmt.Fprintln(t.w, strings.Join(values, "\t"))
}

func (t *tableWriter) Flush() {
	t.w.Flush()
}

func printPagination(total int64, page, perPage, totalPages int) {
	if total == 0 {
		fmt.Println("No rows found.")
		return
	}
	start := (page-1)*perPage + 1
	end := min(int64(page*perPage), total)
	fmt.Printf("\nShowing %d-%d of %d rows (page %d/%d)\n", start, end, total, page, totalPages)
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "<null>"
	case []byte:
		return string(t)
	default:
		return fmt.Sprint(t)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
