package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatWide     Format = "wide"
	FormatTemplate Format = "template"
)

// Spec is a parsed --output value. Template is set for FormatTemplate.
type Spec struct {
	Format   Format
	Template string
}

// ParseFormat accepts json, yaml, table, wide or template=<go template>.
func ParseFormat(value string) (Spec, error) {
	value = strings.TrimSpace(value)
	if name, tmpl, ok := strings.Cut(value, "="); ok {
		if Format(strings.ToLower(name)) != FormatTemplate {
			return Spec{}, fmt.Errorf("unknown output format: %s", value)
		}
		if strings.TrimSpace(tmpl) == "" {
			return Spec{}, fmt.Errorf("template output requires a template, e.g. template='{{.Name}}'")
		}
		return Spec{Format: FormatTemplate, Template: tmpl}, nil
	}
	switch f := Format(strings.ToLower(value)); f {
	case "":
		return Spec{Format: FormatJSON}, nil
	case FormatJSON, FormatYAML, FormatTable, FormatWide:
		return Spec{Format: f}, nil
	case FormatTemplate:
		return Spec{}, fmt.Errorf("template output requires a template, e.g. template='{{.Name}}'")
	default:
		return Spec{}, fmt.Errorf("unknown output format: %s", value)
	}
}

func WriteObject(w io.Writer, format Format, obj any) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case FormatTable:
		return fmt.Errorf("table format requires a specific formatter")
	case FormatWide:
		return fmt.Errorf("wide format requires a specific formatter")
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteTemplate executes tmpl once per item, each followed by a newline.
// Sprig functions are available.
func WriteTemplate[T any](w io.Writer, tmpl string, items []T) error {
	t, err := template.New("output").Funcs(sprig.TxtFuncMap()).Option("missingkey=zero").Parse(tmpl)
	if err != nil {
		return fmt.Errorf("invalid output template: %w", err)
	}
	for _, item := range items {
		if err := t.Execute(w, item); err != nil {
			return fmt.Errorf("failed to render output template: %w", err)
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	return nil
}
