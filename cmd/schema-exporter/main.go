// Command schema-exporter writes the settings schema of every registered
// component as a JSON Schema file, plus an OpenAPI document describing the
// flow validator HTTP API.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/devops-bizzibees/activepieces/component"
	"github.com/devops-bizzibees/activepieces/componentregistry"
)

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, output io.Writer) error {
	fs := flag.NewFlagSet("schema-exporter", flag.ContinueOnError)
	fs.SetOutput(output)
	outDir := fs.String("out", "./schemas", "Output directory for component schemas")
	openapiOut := fs.String("openapi", "./specs/openapi.v3.yaml", "Output path for the OpenAPI document, empty to skip")
	catalog := fs.String("catalog", "", "Optional YAML component catalog to export as well")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger := log.New(output, "", 0)

	registry := component.NewRegistry()
	if err := componentregistry.Register(registry); err != nil {
		return fmt.Errorf("register components: %w", err)
	}
	if *catalog != "" {
		schemas, err := component.LoadCatalogFile(*catalog)
		if err != nil {
			return err
		}
		if err := registry.RegisterAll(schemas); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	exported := make([]ExportedSchema, 0)
	for _, schema := range registry.ListSchemas() {
		doc, err := exportSchema(schema)
		if err != nil {
			return err
		}
		path := filepath.Join(*outDir, doc.ID)
		if err := writeJSON(path, doc); err != nil {
			return err
		}
		exported = append(exported, doc)
		logger.Printf("generated %s", path)
	}

	if *openapiOut != "" {
		if err := os.MkdirAll(filepath.Dir(*openapiOut), 0o755); err != nil {
			return fmt.Errorf("create OpenAPI directory: %w", err)
		}
		if err := writeYAML(*openapiOut, buildOpenAPI(exported)); err != nil {
			return err
		}
		logger.Printf("generated %s", *openapiOut)
	}

	logger.Printf("exported %d component schemas", len(exported))
	return nil
}
