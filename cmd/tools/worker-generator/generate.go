// cmd/tools/worker-generator/generate.go
package main

import (
	"bytes"
	"fmt"
	"go/format"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"time"

	"loangenius/pkg/registry"
)

// WorkerData feeds the scaffold templates.
type WorkerData struct {
	Name         string
	PackageName  string
	TaskType     string
	Description  string
	Category     string
	Timeout      time.Duration
	InputFields  []Field
	OutputFields []Field
}

// Field is one struct field derived from a schema property.
type Field struct {
	GoName   string
	GoType   string
	JSONName string
	Required bool
}

func newWorkerData(a *registry.Activity) (WorkerData, error) {
	timeout, err := a.TimeoutDuration()
	if err != nil {
		return WorkerData{}, err
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return WorkerData{
		Name:         a.DisplayName,
		PackageName:  strings.ReplaceAll(a.TaskType, "-", ""),
		TaskType:     a.TaskType,
		Description:  a.Description,
		Category:     a.Category,
		Timeout:      timeout,
		InputFields:  schemaFields(a.InputSchema),
		OutputFields: schemaFields(a.OutputSchema),
	}, nil
}

// WorkerDir is where the scaffold of a lands under root.
func WorkerDir(root string, a *registry.Activity) string {
	return filepath.Join(root, strings.ToLower(a.Category), a.TaskType)
}

// Scaffold renders every file of a worker package, gofmt'ed, keyed by file name.
func Scaffold(a *registry.Activity) (map[string][]byte, error) {
	data, err := newWorkerData(a)
	if err != nil {
		return nil, err
	}

	files := make(map[string][]byte, len(templates))
	for name, src := range templates {
		tmpl, err := template.New(name).Funcs(funcMap).Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render %s: %w", name, err)
		}
		out, err := format.Source(buf.Bytes())
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", name, err)
		}
		files[name] = out
	}
	return files, nil
}

// schemaFields lists the top-level properties of a JSON schema in name order.
func schemaFields(schema map[string]interface{}) []Field {
	props, _ := schema["properties"].(map[string]interface{})
	required := map[string]bool{}
	if list, ok := schema["required"].([]interface{}); ok {
		for _, r := range list {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]Field, 0, len(names))
	for _, name := range names {
		details, _ := props[name].(map[string]interface{})
		fields = append(fields, Field{
			GoName:   exportedName(name),
			GoType:   goTypeFromJSONType(details["type"]),
			JSONName: name,
			Required: required[name],
		})
	}
	return fields
}

// goTypeFromJSONType maps JSON schema types to Go types.
func goTypeFromJSONType(jsonType interface{}) string {
	switch jsonType {
	case "string":
		return "string"
	case "integer":
		return "int"
	case "number":
		return "float64"
	case "boolean":
		return "bool"
	case "object":
		return "map[string]interface{}"
	case "array":
		return "[]interface{}"
	default:
		return "json.RawMessage"
	}
}

// exportedName turns first_name, bearerToken or lead-id into FirstName,
// BearerToken and LeadID.
func exportedName(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	var b strings.Builder
	for _, p := range parts {
		switch strings.ToLower(p) {
		case "id", "url", "otp", "pan", "api":
			b.WriteString(strings.ToUpper(p))
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]) + p[1:])
	}
	name := b.String()
	for _, suffix := range []string{"Id", "Url"} {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix) + strings.ToUpper(suffix)
		}
	}
	if name == "" {
		return "Field"
	}
	return name
}

func usesRawJSON(fields []Field) bool {
	for _, f := range fields {
		if f.GoType == "json.RawMessage" {
			return true
		}
	}
	return false
}

var funcMap = template.FuncMap{"rawJSON": usesRawJSON}

var templates = map[string]string{
	"config.go":       configTemplate,
	"models.go":       modelsTemplate,
	"handler.go":      handlerTemplate,
	"handler_test.go": testTemplate,
}

const configTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/config.go
package {{ .PackageName }}

import (
	"time"

	"loangenius/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

// LoadConfig reads the worker section; a zero timeout falls back to {{ .Timeout }}.
func LoadConfig(wc config.WorkerConfig) *Config {
	timeout := config.GetDuration(wc.Timeout)
	if timeout <= 0 {
		timeout = {{ printf "%d" .Timeout.Milliseconds }} * time.Millisecond
	}
	return &Config{Timeout: timeout}
}
`

const modelsTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/models.go
package {{ .PackageName }}
{{ if or (rawJSON .InputFields) (rawJSON .OutputFields) }}
import "encoding/json"
{{ end }}
type Input struct {
{{- range .InputFields }}
	{{ .GoName }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}{{ if not .Required }},omitempty{{ end }}"` + "`" + `
{{- end }}
}

type Output struct {
{{- range .OutputFields }}
	{{ .GoName }} {{ .GoType }} ` + "`" + `json:"{{ .JSONName }}"` + "`" + `
{{- end }}
}
`

const handlerTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler.go
package {{ .PackageName }}

import (
	"context"
	"fmt"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"loangenius/internal/common/camunda"
	"loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
	"loangenius/internal/common/observability"
	commonvalidation "loangenius/internal/common/validation"
)

const (
	TaskType = "{{ .TaskType }}"
)

// Handler runs {{ .Name }} jobs.{{ if .Description }} {{ .Description }}.{{ end }}
type Handler struct {
	runner *camunda.Runner[Input, Output]
	logger logger.Logger
}

func NewHandler(config *Config, schema *commonvalidation.Schema, obs *observability.Observability, log logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	h := &Handler{logger: log.WithFields(map[string]interface{}{"taskType": TaskType})}
	h.runner = camunda.NewRunner(TaskType, h.Execute, camunda.RunnerOptions{
		Timeout:       config.Timeout,
		Schema:        schema,
		Observability: obs,
		Logger:        log,
	})
	return h
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Handle(client, job)
}

func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	return nil, errors.NewInternalError(fmt.Errorf("%s is not implemented", TaskType))
}
`

const testTemplate = `// internal/workers/{{ .Category }}/{{ .TaskType }}/handler_test.go
package {{ .PackageName }}

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"loangenius/internal/common/config"
	apperrors "loangenius/internal/common/errors"
	"loangenius/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), nil, nil, logger.NewTestLogger(t))
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_NotImplemented(t *testing.T) {
	_, err := createTestHandler(t).Execute(context.Background(), &Input{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInternal))
}

func TestLoadConfig_Default(t *testing.T) {
	assert.Equal(t, "{{ .Timeout }}", LoadConfig(config.WorkerConfig{}).Timeout.String())
}
`
