package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/crystaldolphin/chatkeeper/internal/config"
	"github.com/crystaldolphin/chatkeeper/internal/extraction"
)

var (
	schemaFormat string
	schemaFile   string
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the extraction schema",
	RunE:  runSchema,
}

func init() {
	schemaCmd.Flags().StringVar(&schemaFormat, "format", "yaml", "Output format: yaml, json or jsonschema")
	schemaCmd.Flags().StringVarP(&schemaFile, "file", "f", "", "Schema file to check instead of the configured one")
}

func runSchema(_ *cobra.Command, _ []string) error {
	path := schemaFile
	if path == "" {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.SchemaFile()
	}

	s, err := extraction.LoadSchema(path)
	if err != nil {
		return err
	}

	var v any = s.Declaration()
	format := schemaFormat
	if format == "jsonschema" {
		v, format = s.JSONSchema(), "json"
	}
	data, err := render(v, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func render(v any, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "yaml", "yml":
		return yaml.Marshal(v)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}
