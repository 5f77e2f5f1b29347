package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/invopop/jsonschema"

	"github.com/KDT2006/minewars/internal/protocol"
)

func main() {
	var outPath string
	flag.StringVar(&outPath, "out", "", "path to write the JSON schema (stdout when empty)")
	flag.Parse()

	data, err := json.MarshalIndent(buildSchema(), "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "marshal schema: %v\n", err)
		os.Exit(1)
	}
	data = append(data, '\n')

	if outPath == "" {
		os.Stdout.Write(data)
		return
	}
	if err := writeSchema(outPath, data); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write schema: %v\n", err)
		os.Exit(1)
	}
}

// buildSchema describes every wire message as one alternative of a oneOf,
// each pinned to its "type" tag.
func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}

	root := &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "MineWars Protocol",
		Description: "Messages exchanged between a MineWars host and its guests.",
	}
	for _, typ := range protocol.Types() {
		payload, ok := protocol.Empty(typ)
		if !ok {
			continue
		}
		variant := reflector.ReflectFromType(reflect.TypeOf(payload))
		variant.Version = ""
		variant.Title = string(typ)
		if variant.Properties != nil {
			variant.Properties.Set("type", &jsonschema.Schema{Type: "string", Const: string(typ)})
		}
		variant.Required = append([]string{"type"}, variant.Required...)
		root.OneOf = append(root.OneOf, variant)
	}
	return root
}

func writeSchema(outPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
