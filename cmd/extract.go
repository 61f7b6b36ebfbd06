package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/dependency"
	"github.com/crystaldolphin/chatkeeper/internal/extraction"
	"github.com/crystaldolphin/chatkeeper/internal/shared/cmdutils"
	"github.com/crystaldolphin/chatkeeper/internal/shared/llmutils"
)

var (
	extractInput  string
	extractOutput string
	extractFormat string
	extractText   string
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract contact records from conversations",
	Long: "Extract validated contact records from one text (-t) or a batch file (-i).\n\n" +
		"A batch file is a YAML or JSON list of {id, text} items or plain strings,\n" +
		"or free text with conversations separated by lines of ---.",
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "Batch input file (- for stdin)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Report file (default stdout)")
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "Report format: json or yaml (default from -o extension, else json)")
	extractCmd.Flags().StringVarP(&extractText, "text", "t", "", "Extract from a single conversation text")
}

// batchItem is one conversation in a batch input file.
type batchItem struct {
	ID   string `yaml:"id"`
	Text string `yaml:"text"`
}

func runExtract(_ *cobra.Command, _ []string) error {
	if extractInput == "" && extractText == "" {
		return fmt.Errorf("one of --input or --text is required")
	}
	format, err := reportFormat(extractFormat, extractOutput)
	if err != nil {
		return err
	}

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer container.Close()

	if extractText != "" {
		res, err := container.Pipeline().Extract(ctx, extractText)
		if err != nil {
			res = extraction.FailedResult(extractText, err)
		}
		return writeOutput(res, format, extractOutput)
	}

	items, err := readBatch(extractInput)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no conversations in %s", extractInput)
	}

	texts := make([]string, len(items))
	for i, it := range items {
		texts[i] = it.Text
	}
	fmt.Fprintf(os.Stderr, "  ↳ extracting %d conversations...\n", len(texts))
	report := container.Pipeline().ExtractBatch(ctx, texts)

	rows := make([][2]string, 0, len(items)+1)
	for i, e := range report.Entries {
		rows = append(rows, [2]string{items[i].ID, fmt.Sprintf("%-7s %.2f", e.Status, e.OverallScore)})
	}
	rows = append(rows, [2]string{"mean", strconv.FormatFloat(report.MeanScore, 'f', 2, 64)})
	cmdutils.PrintTable(os.Stderr, rows)

	return writeOutput(report, format, extractOutput)
}

// reportFormat resolves --format, falling back to the output file extension.
func reportFormat(flag, output string) (string, error) {
	switch strings.ToLower(flag) {
	case "json", "yaml":
		return strings.ToLower(flag), nil
	case "yml":
		return "yaml", nil
	case "":
	default:
		return "", fmt.Errorf("unknown format %q (want json or yaml)", flag)
	}
	switch strings.ToLower(filepath.Ext(output)) {
	case ".yaml", ".yml":
		return "yaml", nil
	}
	return "json", nil
}

func readBatch(path string) ([]batchItem, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return parseBatch(data), nil
}

// parseBatch accepts a YAML/JSON list of {id, text} items, a list of strings,
// or free text separated by --- lines. Items without an id are numbered.
func parseBatch(data []byte) []batchItem {
	var items []batchItem
	if err := yaml.Unmarshal(data, &items); err != nil || !hasText(items) {
		items = nil
		var texts []string
		if err := yaml.Unmarshal(data, &texts); err == nil && len(texts) > 0 {
			for _, t := range texts {
				items = append(items, batchItem{Text: t})
			}
		} else {
			items = splitDocuments(string(data))
		}
	}

	out := items[:0]
	for _, it := range items {
		it.Text = strings.TrimSpace(it.Text)
		if it.Text == "" {
			continue
		}
		out = append(out, it)
	}
	for i := range out {
		out[i].ID = llmutils.StringOrDefault(out[i].ID, strconv.Itoa(i+1))
	}
	return out
}

func hasText(items []batchItem) bool {
	for _, it := range items {
		if strings.TrimSpace(it.Text) != "" {
			return true
		}
	}
	return false
}

func splitDocuments(s string) []batchItem {
	var (
		items []batchItem
		cur   strings.Builder
	)
	flush := func() {
		items = append(items, batchItem{Text: cur.String()})
		cur.Reset()
	}
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "---" {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return items
}

// writeOutput renders v as json or yaml to path, or stdout when path is empty.
func writeOutput(v any, format, path string) error {
	data, err := render(v, format)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	fmt.Fprintf(os.Stderr, "✓ Report written to %s\n", path)
	return nil
}
