package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed plan.schema.json
var planSchema []byte

// ErrInvalidPlan is returned when a plan fails schema or semantic checks.
var ErrInvalidPlan = errors.New("invalid run plan")

// Plan is a batch of loads sharing one reference time. A zero Reference
// means the current time; a nil DaysBack means the configured DAYS_BACK.
type Plan struct {
	Reference time.Time    `toml:"reference" yaml:"reference" json:"reference"`
	DaysBack  *int         `toml:"days_back" yaml:"days_back" json:"days_back,omitempty"`
	Archive   []ArchiveJob `toml:"archive" yaml:"archive" json:"archive,omitempty"`
	Files     []FileJob    `toml:"files" yaml:"files" json:"files,omitempty"`
}

// ArchiveJob loads one site and model from the archive.
type ArchiveJob struct {
	Site  string `toml:"site" yaml:"site" json:"site"`
	Model string `toml:"model" yaml:"model" json:"model"`
}

// FileJob loads a set of sounding files for one site and model.
type FileJob struct {
	Site  string    `toml:"site" yaml:"site" json:"site"`
	Model string    `toml:"model" yaml:"model" json:"model"`
	Start time.Time `toml:"start" yaml:"start" json:"start"`
	End   time.Time `toml:"end" yaml:"end" json:"end"`
	Paths []string  `toml:"paths" yaml:"paths" json:"paths"`
}

// LoadPlan reads a TOML or YAML plan, chosen by file extension, and
// validates it.
func LoadPlan(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	var plan Plan
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		err = toml.Unmarshal(data, &plan)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &plan)
	default:
		return nil, fmt.Errorf("plan %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", path, err)
	}

	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("plan %s: %w", path, err)
	}
	return &plan, nil
}

// Validate checks the plan against the embedded schema and that every file
// job has a non-empty window.
func (p *Plan) Validate() error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(planSchema),
		gojsonschema.NewGoLoader(p),
	)
	if err != nil {
		return fmt.Errorf("validate plan: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
		}
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(msgs, "; "))
	}

	for i, job := range p.Files {
		if !job.End.After(job.Start) {
			return fmt.Errorf("%w: files.%d: end %s is not after start %s",
				ErrInvalidPlan, i, job.End.Format(time.RFC3339), job.Start.Format(time.RFC3339))
		}
	}
	return nil
}
