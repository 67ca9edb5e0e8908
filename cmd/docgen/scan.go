package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"exchangedocs/internal/archive"
	"exchangedocs/internal/placeholder"
)

var scanCmd = &cobra.Command{
	Use:   "scan [flags] FILE",
	Short: "List the placeholders in a template",
	Long:  `Scan reads a .docx (or any zip-based document) or a plain-text template and prints every distinct placeholder key with its first spelling and the syntaxes it was written in.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().String("format", "pretty", "output format (pretty|json)")
}

func runScan(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	content, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	tokens, kind, err := scanContent(content)
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	switch format {
	case "pretty":
		printTokens(cmd.OutOrStdout(), kind, tokens)
		return nil
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tokens.Tokens())
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// scanContent sniffs content and extracts its tokens. PDF payloads carry no
// editable text and yield an empty set.
func scanContent(content []byte) (placeholder.Set, archive.Kind, error) {
	kind := archive.Sniff(content)
	switch kind {
	case archive.KindArchive:
		tokens, err := placeholder.Scan(content)
		return tokens, kind, err
	case archive.KindText:
		return placeholder.ScanText(string(content)), kind, nil
	default:
		return placeholder.NewSet(), kind, nil
	}
}

func printTokens(w io.Writer, kind archive.Kind, tokens placeholder.Set) {
	key := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)
	fmt.Fprintf(w, "%s template, %d placeholder(s)\n", kind, tokens.Len())
	for _, token := range tokens.Tokens() {
		syntaxes := make([]string, 0, len(token.Syntaxes))
		for _, s := range token.Syntaxes {
			syntaxes = append(syntaxes, string(s))
		}
		key.Fprintf(w, "  %s", token.Key)
		fmt.Fprintf(w, "  %q ", token.Raw)
		dim.Fprintf(w, "[%s]\n", strings.Join(syntaxes, ","))
	}
}
