package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"exchangedocs/internal/config"
	"exchangedocs/internal/generate"
	"exchangedocs/internal/objectstore"
	"exchangedocs/internal/records"
	"exchangedocs/internal/resolve"
	"exchangedocs/internal/util"
)

var generateCmd = &cobra.Command{
	Use:   "generate [flags]",
	Short: "Fill a template from a JSON record graph",
	Long:  `Generate runs the full pipeline against local files: the template is read from --template, case data from --record and the output is written under --out.`,
	Args:  cobra.NoArgs,
	RunE:  runGenerateCmd,
}

func init() {
	flags := generateCmd.Flags()
	flags.String("template", "", "template file (.docx or .txt)")
	flags.String("record", "", "JSON record graph")
	flags.String("manifest", "", "TOML template manifest with required fields and fallbacks")
	flags.String("template-id", "", "template id for manifest lookups (default: template file name)")
	flags.StringArray("set", nil, "override a placeholder value (key=value, repeatable)")
	flags.String("out", "out", "output directory")
	flags.String("locale", "en-US", "locale for money and dates")
	_ = generateCmd.MarkFlagRequired("template")
	_ = generateCmd.MarkFlagRequired("record")
}

type generateOptions struct {
	TemplatePath string
	RecordPath   string
	ManifestPath string
	TemplateID   string
	Sets         []string
	OutDir       string
	Locale       string
}

func runGenerateCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	var opts generateOptions
	var err error
	for _, f := range []struct {
		name   string
		target *string
	}{
		{"template", &opts.TemplatePath},
		{"record", &opts.RecordPath},
		{"manifest", &opts.ManifestPath},
		{"template-id", &opts.TemplateID},
		{"out", &opts.OutDir},
		{"locale", &opts.Locale},
	} {
		if *f.target, err = flags.GetString(f.name); err != nil {
			return fmt.Errorf("failed to get %s flag: %w", f.name, err)
		}
	}
	if opts.Sets, err = flags.GetStringArray("set"); err != nil {
		return fmt.Errorf("failed to get set flag: %w", err)
	}
	_, err = runGenerate(cmd.Context(), opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	return err
}

// runGenerate wires the orchestrator to local files and reports the outcome.
func runGenerate(ctx context.Context, opts generateOptions, stdout, stderr io.Writer) (*generate.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	content, err := os.ReadFile(opts.TemplatePath)
	if err != nil {
		return nil, err
	}
	graph, err := loadGraph(opts.RecordPath)
	if err != nil {
		return nil, err
	}
	overrides, err := parseSet(opts.Sets)
	if err != nil {
		return nil, err
	}
	templateID := opts.TemplateID
	if templateID == "" {
		templateID = templateIDFromPath(opts.TemplatePath)
	}

	var genOpts []generate.Option
	name := templateID
	if opts.ManifestPath != "" {
		manifest, err := config.LoadManifest(opts.ManifestPath)
		if err != nil {
			return nil, err
		}
		if entry, ok := manifest.Lookup(templateID); ok && entry.Name != "" {
			name = entry.Name
		}
		genOpts = append(genOpts, generate.WithRequirements(manifest))
	}

	tag := language.AmericanEnglish
	if opts.Locale != "" {
		if tag, err = language.Parse(opts.Locale); err != nil {
			return nil, fmt.Errorf("invalid locale %q: %w", opts.Locale, err)
		}
	}

	caseID := graph.Case.ID
	if caseID == "" {
		caseID = "local"
		graph.Case.ID = caseID
	}

	tpl := generate.Template{ID: templateID, Name: name, Content: content}
	if len(content) > 0 {
		tpl.ObjectPath = filepath.Base(opts.TemplatePath)
	}

	genOpts = append(genOpts,
		generate.WithLogger(cliLogger(stderr)),
		generate.WithOutputPrefix(""),
	)
	orchestrator := generate.New(
		localTemplate{template: tpl},
		staticGraph{graph: graph},
		objectstore.NewDir(opts.OutDir),
		resolve.New(resolve.WithLocale(tag)),
		genOpts...,
	)

	result, err := orchestrator.Generate(ctx, generate.Request{TemplateID: templateID, CaseID: caseID, Overrides: overrides})
	if err != nil {
		printFailure(stderr, err)
		return nil, err
	}
	printResult(stdout, stderr, result)
	return result, nil
}

// cliLogger writes pipeline logs to stderr, warnings and up unless LOG_LEVEL says otherwise.
func cliLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if raw := os.Getenv("LOG_LEVEL"); raw != "" {
		level = util.ParseLevel(raw)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func printResult(stdout, stderr io.Writer, result *generate.Result) {
	color.New(color.FgGreen).Fprintf(stdout, "wrote %s\n", result.DocumentRef)
	fmt.Fprintf(stdout, "  %d placeholder(s), %d resolved, %d replacement(s)\n",
		len(result.Resolutions), result.ResolvedCount, result.Replacements)
	warn := color.New(color.FgYellow)
	for _, w := range result.Warnings {
		warn.Fprintf(stderr, "warning: %s (%s): %s\n", w.Token, w.Origin, w.Detail)
	}
}

func printFailure(w io.Writer, err error) {
	red := color.New(color.FgRed)
	var genErr *generate.Error
	if !errors.As(err, &genErr) {
		return
	}
	red.Fprintf(w, "%s at %s\n", genErr.Kind, genErr.Step)
	for _, key := range genErr.Missing {
		red.Fprintf(w, "  missing: %s\n", key)
	}
}

// localTemplate serves a single template read from disk.
type localTemplate struct {
	template generate.Template
}

func (l localTemplate) GetTemplate(_ context.Context, templateID string) (generate.Template, error) {
	if templateID != l.template.ID {
		return generate.Template{}, fmt.Errorf("%w: %s", generate.ErrTemplateNotFound, templateID)
	}
	return l.template, nil
}

// staticGraph returns the same graph for its own case id.
type staticGraph struct {
	graph *records.Graph
}

func (s staticGraph) Aggregate(_ context.Context, caseID string) (*records.Graph, error) {
	if caseID != s.graph.Case.ID {
		return nil, fmt.Errorf("%w: %s", records.ErrCaseNotFound, caseID)
	}
	g := *s.graph
	return &g, nil
}

func loadGraph(path string) (*records.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var graph records.Graph
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&graph); err != nil {
		return nil, fmt.Errorf("parse record graph %s: %w", path, err)
	}
	return &graph, nil
}

// parseSet turns repeated key=value flags into an override map. Later values
// win; the key may not be empty but the value may.
func parseSet(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", raw)
		}
		out[key] = value
	}
	return out, nil
}

func templateIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
