// ocrworker is a long-lived OCR worker process that converts PDF documents
// to text over a line-delimited JSON protocol on stdin/stdout.
//
// The worker loads its OCR model once at startup and then serves any number
// of conversion requests without reloading, so a host application pays the
// model-load cost once per process instead of once per document.
//
// Protocol:
//
// After startup the worker writes a single readiness line to stdout:
//
//	{"ready": true}
//	{"ready": false, "error": "model load failed: ..."}
//
// It then reads one JSON request per line from stdin and writes one JSON
// response per request to stdout, in order:
//
//	{"id": "job-1", "pdf_path": "/data/scan.pdf"}
//	{"id": "job-1", "text": "...", "page_count": 3}
//	{"id": "job-2", "pdf_path": "/missing.pdf"}
//	{"id": "job-2", "error": "cannot read PDF: ..."}
//
// Optional request fields:
//
//	dpi      Rasterization resolution for this request (default OCR_DPI)
//	pdf_out  Additionally write a searchable PDF to this path
//
// All diagnostics go to stderr; stdout carries nothing but the protocol.
// The worker exits 0 when stdin closes and 1 when the model fails to load.
//
// Configuration (environment, .env honored):
//
//	OCR_ENGINE          Engine profile: "tesseract" (default) or "docai"
//	OCR_LANG            Recognition language (default "eng")
//	OCR_DPI             Default rasterization DPI (default 300)
//	OCR_DET_MODEL_DIR   Pre-provisioned detection models (default /models/det)
//	OCR_REC_MODEL_DIR   Pre-provisioned recognition models (default /models/rec)
//	OCR_CLS_MODEL_DIR   Pre-provisioned classification models (default /models/cls)
//	OCR_DISABLE_ACCEL   Disable CPU instruction-set acceleration
//	OCR_DEBUG           Verbose engine diagnostics on stderr
//	DOCAI_CONFIG        YAML file with Document AI processor settings
//	DOCAI_PROJECT_ID    Document AI project (when DOCAI_CONFIG is unset)
//	DOCAI_LOCATION      Document AI location
//	DOCAI_PROCESSOR_ID  Document AI processor
//
// Authentication for the docai engine uses the standard
// GOOGLE_APPLICATION_CREDENTIALS environment variable.
//
// Example:
//
//	echo '{"id":"1","pdf_path":"doc.pdf"}' | ocrworker
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/scandocs/ocrworker/pkg/config"
	"github.com/scandocs/ocrworker/pkg/ocr"
	"github.com/scandocs/ocrworker/pkg/ocr/docai"
	"github.com/scandocs/ocrworker/pkg/ocr/tesseract"
	"github.com/scandocs/ocrworker/pkg/protocol"
	"github.com/scandocs/ocrworker/pkg/raster"
	"github.com/scandocs/ocrworker/pkg/worker"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		startupFailure(err)
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	engine, err := buildEngine(cfg)
	if err != nil {
		startupFailure(err)
	}
	defer engine.Close()

	w := worker.New(worker.Config{
		Engine: engine,
		Open: func(path string) (worker.Document, error) {
			return raster.Open(path)
		},
		Output:     os.Stdout,
		DefaultDPI: cfg.DPI,
	})

	if err := w.Run(context.Background(), os.Stdin); err != nil {
		log.Error().Err(err).Msg("worker terminated")
		os.Exit(1)
	}
}

// buildEngine selects and configures the OCR engine named by OCR_ENGINE.
func buildEngine(cfg *config.Config) (ocr.Engine, error) {
	switch cfg.Engine {
	case config.EngineTesseract:
		tc := tesseract.Config{
			Language:     cfg.Language,
			DisableAccel: cfg.DisableAccel,
		}
		if cfg.HasCustomModels() {
			log.Info().Str("dir", cfg.RecModelDir).Msg("using pre-provisioned models")
			tc.TessdataDir = cfg.RecModelDir
		}
		return tesseract.New(tc), nil

	case config.EngineDocAI:
		var dc docai.Config
		if cfg.DocAIConfigPath != "" {
			loaded, err := docai.LoadConfigFile(cfg.DocAIConfigPath)
			if err != nil {
				return nil, fmt.Errorf("failed to load Document AI config: %w", err)
			}
			dc = loaded
		} else {
			dc = docai.Config{
				ProjectID:   cfg.DocAIProjectID,
				Location:    cfg.DocAILocation,
				ProcessorID: cfg.DocAIProcessorID,
			}
		}
		dc.Debug = cfg.Debug
		if err := dc.Validate(); err != nil {
			return nil, err
		}
		return docai.New(dc), nil
	}
	return nil, fmt.Errorf("unknown OCR_ENGINE %q", cfg.Engine)
}

// startupFailure reports a pre-load configuration error on both channels the
// host watches: a negative readiness line on stdout and the exit status.
func startupFailure(err error) {
	log.Error().Err(err).Msg("startup failed")
	_ = protocol.NewEmitter(os.Stdout).Emit(protocol.Readiness{
		Ready: false,
		Error: err.Error(),
	})
	os.Exit(1)
}
