// Package config reads the worker configuration from the environment.
//
// All settings are read once at startup; nothing is reconfigured while the
// process is running. A .env file next to the binary is honored when
// present, mirroring how the host application provisions its containers.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Engine profile names accepted in OCR_ENGINE.
const (
	EngineTesseract = "tesseract"
	EngineDocAI     = "docai"
)

// Defaults applied when the environment leaves a setting unset.
const (
	DefaultLanguage    = "eng"
	DefaultDPI         = 300
	DefaultDetModelDir = "/models/det"
	DefaultRecModelDir = "/models/rec"
	DefaultClsModelDir = "/models/cls"
)

// Config is the worker's process-wide configuration.
type Config struct {
	Engine   string // OCR_ENGINE: engine profile to load
	Language string // OCR_LANG: model language/locale
	DPI      int    // OCR_DPI: default rasterization resolution

	// Pre-provisioned model artifact directories. The custom-model profile
	// is only used when all three exist on disk.
	DetModelDir string // OCR_DET_MODEL_DIR: detection models
	RecModelDir string // OCR_REC_MODEL_DIR: recognition models
	ClsModelDir string // OCR_CLS_MODEL_DIR: orientation-classification models

	// DisableAccel turns off the CPU instruction-set acceleration path that
	// crashes the recognition engine under some runtime/model combinations.
	DisableAccel bool // OCR_DISABLE_ACCEL

	// Debug enables verbose engine diagnostics on stderr.
	Debug bool // OCR_DEBUG

	// Document AI processor settings, either from a YAML file or from the
	// individual environment variables.
	DocAIConfigPath  string // DOCAI_CONFIG
	DocAIProjectID   string // DOCAI_PROJECT_ID
	DocAILocation    string // DOCAI_LOCATION
	DocAIProcessorID string // DOCAI_PROCESSOR_ID
}

// Load reads the configuration from the environment, applying defaults.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment is authoritative anyway.
	_ = godotenv.Load()

	cfg := &Config{
		Engine:           getenv("OCR_ENGINE", EngineTesseract),
		Language:         getenv("OCR_LANG", DefaultLanguage),
		DetModelDir:      getenv("OCR_DET_MODEL_DIR", DefaultDetModelDir),
		RecModelDir:      getenv("OCR_REC_MODEL_DIR", DefaultRecModelDir),
		ClsModelDir:      getenv("OCR_CLS_MODEL_DIR", DefaultClsModelDir),
		DisableAccel:     boolenv("OCR_DISABLE_ACCEL"),
		Debug:            boolenv("OCR_DEBUG"),
		DocAIConfigPath:  os.Getenv("DOCAI_CONFIG"),
		DocAIProjectID:   os.Getenv("DOCAI_PROJECT_ID"),
		DocAILocation:    os.Getenv("DOCAI_LOCATION"),
		DocAIProcessorID: os.Getenv("DOCAI_PROCESSOR_ID"),
	}

	switch cfg.Engine {
	case EngineTesseract, EngineDocAI:
	default:
		return nil, fmt.Errorf("unknown OCR_ENGINE %q (want %q or %q)",
			cfg.Engine, EngineTesseract, EngineDocAI)
	}

	dpi := getenv("OCR_DPI", "")
	if dpi == "" {
		cfg.DPI = DefaultDPI
	} else {
		n, err := strconv.Atoi(dpi)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid OCR_DPI %q: must be a positive integer", dpi)
		}
		cfg.DPI = n
	}

	return cfg, nil
}

// HasCustomModels reports whether all pre-provisioned model directories
// exist, in which case the engine is pointed at them instead of its
// built-in defaults. Partial provisioning is treated as no provisioning.
func (c *Config) HasCustomModels() bool {
	for _, dir := range []string{c.DetModelDir, c.RecModelDir, c.ClsModelDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return false
		}
	}
	return true
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func boolenv(key string) bool {
	switch os.Getenv(key) {
	case "", "0", "false", "no":
		return false
	default:
		return true
	}
}
