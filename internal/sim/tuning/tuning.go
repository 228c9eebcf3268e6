package tuning

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed tuning.schema.json
var schemaJSON string

// Tuning is the immutable configuration snapshot handed to constructors.
type Tuning struct {
	Streaming Streaming `yaml:"streaming" json:"streaming"`
	Storage   Storage   `yaml:"storage" json:"storage"`
	Generator Generator `yaml:"generator" json:"generator"`
}

type Streaming struct {
	RenderDistance int `yaml:"render_distance" json:"render_distance"`
	QueueCapacity  int `yaml:"queue_capacity" json:"queue_capacity"`
}

type Storage struct {
	Path           string `yaml:"path" json:"path"`
	MaxBatch       int    `yaml:"max_batch" json:"max_batch"`
	Retries        int    `yaml:"retries" json:"retries"`
	RetryBackoffMs int    `yaml:"retry_backoff_ms" json:"retry_backoff_ms"`
	JournalDir     string `yaml:"journal_dir" json:"journal_dir"`
}

func (s Storage) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMs) * time.Millisecond
}

type Generator struct {
	Kind  string `yaml:"kind" json:"kind"`
	Seed  int64  `yaml:"seed" json:"seed"`
	Noise Noise  `yaml:"noise" json:"noise"`
}

type Noise struct {
	Alpha      float64 `yaml:"alpha" json:"alpha"`
	Beta       float64 `yaml:"beta" json:"beta"`
	Octaves    int     `yaml:"octaves" json:"octaves"`
	Scale      float64 `yaml:"scale" json:"scale"`
	BaseHeight int     `yaml:"base_height" json:"base_height"`
	Amplitude  int     `yaml:"amplitude" json:"amplitude"`
}

const (
	GeneratorLayered = "layered"
	GeneratorNoise   = "noise"
)

func Defaults() Tuning {
	return Tuning{
		Streaming: Streaming{RenderDistance: 5, QueueCapacity: 4096},
		Storage: Storage{
			Path:           "./data/save.sqlite",
			MaxBatch:       256,
			Retries:        3,
			RetryBackoffMs: 50,
		},
		Generator: Generator{
			Kind: GeneratorLayered,
			Seed: 1337,
			Noise: Noise{
				Alpha:      2,
				Beta:       2,
				Octaves:    3,
				Scale:      0.03,
				BaseHeight: 40,
				Amplitude:  24,
			},
		},
	}
}

// Load reads a YAML file over Defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	return Parse(raw)
}

// Parse validates raw YAML against the embedded schema and decodes it over
// Defaults.
func Parse(raw []byte) (Tuning, error) {
	t := Defaults()
	if err := validateSchema(raw); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

func validateSchema(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	// Round-trip through JSON so the validator sees float64/map[string]any.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (t *Tuning) Normalize() {
	t.Generator.Kind = strings.ToLower(strings.TrimSpace(t.Generator.Kind))
	if t.Generator.Kind == "" {
		t.Generator.Kind = GeneratorLayered
	}
	t.Storage.Path = strings.TrimSpace(t.Storage.Path)
	t.Storage.JournalDir = strings.TrimSpace(t.Storage.JournalDir)
	if t.Streaming.QueueCapacity <= 0 {
		t.Streaming.QueueCapacity = Defaults().Streaming.QueueCapacity
	}
	if t.Storage.MaxBatch <= 0 {
		t.Storage.MaxBatch = Defaults().Storage.MaxBatch
	}
}

func (t Tuning) Validate() error {
	if t.Streaming.RenderDistance < 0 || t.Streaming.RenderDistance > 64 {
		return fmt.Errorf("streaming.render_distance out of range: %d", t.Streaming.RenderDistance)
	}
	// Every desired region may have one request outstanding.
	if side := 2*t.Streaming.RenderDistance + 1; t.Streaming.QueueCapacity < side*side {
		return fmt.Errorf("streaming.queue_capacity %d smaller than view (%d regions)", t.Streaming.QueueCapacity, side*side)
	}
	if t.Storage.Path == "" {
		return fmt.Errorf("storage.path is required")
	}
	if t.Storage.Retries < 0 {
		return fmt.Errorf("storage.retries must be >= 0")
	}
	switch t.Generator.Kind {
	case GeneratorLayered:
	case GeneratorNoise:
		n := t.Generator.Noise
		if n.Octaves <= 0 || n.Scale <= 0 {
			return fmt.Errorf("generator.noise: octaves and scale must be positive")
		}
		if n.BaseHeight <= 0 || n.BaseHeight >= 128 {
			return fmt.Errorf("generator.noise.base_height out of range: %d", n.BaseHeight)
		}
	default:
		return fmt.Errorf("unknown generator kind %q", t.Generator.Kind)
	}
	return nil
}
