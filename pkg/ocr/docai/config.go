package docai

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config identifies the Document AI processor to use.
type Config struct {
	ProjectID   string `yaml:"project_id"`
	Location    string `yaml:"location"`
	ProcessorID string `yaml:"processor_id"`
	Debug       bool   `yaml:"-"` // dump raw API responses to stderr
}

// LoadConfigFile reads processor settings from a YAML file:
//
//	project_id: "your-gcp-project-id"
//	location: "us"
//	processor_id: "your-processor-id"
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read docai config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse docai config: %w", err)
	}
	return cfg, nil
}

// Validate checks that all processor coordinates are present.
func (c Config) Validate() error {
	if c.ProjectID == "" || c.Location == "" || c.ProcessorID == "" {
		return fmt.Errorf("docai config requires project_id, location and processor_id")
	}
	return nil
}
