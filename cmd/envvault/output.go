package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/org/envvault/pkg/models"
)

var outputFormat string // "table", "json", "raw"

// printResult outputs data in the chosen format.
func printResult(data map[string]any) {
	switch outputFormat {
	case "json":
		printJSON(data)
	case "raw":
		for _, k := range sortedKeys(data) {
			fmt.Printf("%s=%v\n", k, data[k])
		}
	default: // table
		printTable(data)
	}
}

// printItems outputs a masked secret listing.
func printItems(items []models.SecretItem) {
	switch outputFormat {
	case "json":
		printJSON(items)
	case "raw":
		for _, it := range items {
			fmt.Printf("%d\t%s\t%s\n", it.ID, it.Key, it.ValueMasked)
		}
	default:
		if len(items) == 0 {
			fmt.Println(color.YellowString("No secrets found"))
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY\tVALUE")
		for _, it := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\n", it.ID, it.Key, it.ValueMasked)
		}
		w.Flush()
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck
}

func printTable(data map[string]any) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, k := range sortedKeys(data) {
		switch val := data[k].(type) {
		case map[string]any:
			fmt.Fprintf(w, "%s\t\n", strings.ToUpper(k))
			for _, kk := range sortedKeys(val) {
				fmt.Fprintf(w, "  %s\t%v\n", kk, val[kk])
			}
		case []any:
			fmt.Fprintf(w, "%s\t%s\n", k, joinAny(val))
		default:
			fmt.Fprintf(w, "%s\t%v\n", k, val)
		}
	}
	w.Flush()
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func joinAny(vals []any) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprintf("%v", v)
	}
	return strings.Join(parts, ", ")
}

func printError(msg string) {
	fmt.Fprintln(os.Stderr, color.RedString("✗")+" "+msg)
}

func printSuccess(msg string) {
	fmt.Println(color.GreenString("✓") + " " + msg)
}

func printHint(msg string) {
	fmt.Println(color.CyanString("→") + " " + msg)
}
