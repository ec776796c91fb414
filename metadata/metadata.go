// Package metadata renders the cloud-init NoCloud documents baked into the
// VM seed disk.
package metadata

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Config holds the inputs for generating cloud-init NoCloud metadata.
type Config struct {
	InstanceID string
	Hostname   string
	// SSHImportID is a launchpad/github key reference (e.g. "gh:user")
	// imported into the default user's authorized keys.
	SSHImportID string
}

var tmplFuncs = template.FuncMap{
	// yamlQuote escapes single quotes for YAML single-quoted strings.
	"yamlQuote": func(s string) string {
		return strings.ReplaceAll(s, "'", "''")
	},
}

var metaDataTmpl = template.Must(template.New("meta-data").Parse(
	"instance-id: {{.InstanceID}}\nlocal-hostname: {{.Hostname}}\n"))

var userDataTmpl = template.Must(template.New("user-data").Funcs(tmplFuncs).Parse(`#cloud-config
{{- if .SSHImportID}}
ssh_import_id:
  - '{{yamlQuote .SSHImportID}}'
{{- end}}
`))

// UserData renders the #cloud-config user-data document.
func UserData(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := userDataTmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render user-data: %w", err)
	}
	return buf.Bytes(), nil
}

// MetaData renders the NoCloud meta-data document.
func MetaData(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := metaDataTmpl.Execute(&buf, cfg); err != nil {
		return nil, fmt.Errorf("render meta-data: %w", err)
	}
	return buf.Bytes(), nil
}
