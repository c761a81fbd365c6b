package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"github.com/23skdu/longbow-ane/internal/ane"
	"github.com/23skdu/longbow-ane/internal/config"
	"github.com/23skdu/longbow-ane/internal/device"
	"github.com/23skdu/longbow-ane/internal/export"
	"github.com/23skdu/longbow-ane/internal/model"
)

type stringList []string

func (s *stringList) String() string     { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

var (
	configPath = flag.String("config", "", "Path to TOML config file")
	devicePath = flag.String("device", "", "Engine render node (default "+config.Default().Device+")")
	modelPath  = flag.String("model", "", "Path to CBOR model descriptor")
	outputPath = flag.String("out", "", "Where to write the Arrow stream of outputs (- for stdout)")
	strict     = flag.Bool("strict", false, "Check ports against declared input/output counts")
	float32In  = flag.Bool("f32", false, "Input files hold float32 instead of fp16")
	listenAddr = flag.String("listen", "", "Address to listen on for HTTP Server (e.g. :8080)")
	maxQueue   = flag.Int("max-queue", 0, "Maximum number of requests waiting for the engine")
	logLevel   = flag.String("log-level", "", "Log level (debug, info, warn, error)")
	enableOTel = flag.Bool("otel", false, "Enable OpenTelemetry tracing (stdout)")
	inputPaths stringList
)

// Overridden in tests.
var (
	traceOut   io.Writer = os.Stdout
	openDevice device.Opener
)

func init() {
	flag.Var(&inputPaths, "input", "Dense input tensor file, once per input port in order")
}

// loadConfig layers flags that were set on top of the config file.
func loadConfig() (config.Config, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Device = *devicePath
		case "model":
			cfg.Model = *modelPath
		case "out":
			cfg.Output = *outputPath
		case "strict":
			cfg.Strict = *strict
		case "f32":
			cfg.Float32 = *float32In
		case "listen":
			cfg.Listen = *listenAddr
		case "max-queue":
			cfg.MaxQueue = *maxQueue
		case "log-level":
			cfg.LogLevel = *logLevel
		case "otel":
			cfg.OTel = *enableOTel
		case "input":
			cfg.Inputs = inputPaths
		}
	})
	return cfg, cfg.Validate()
}

func main() {
	// Initialize logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Caller().Logger()

	flag.Parse()
	os.Exit(run())
}

// run does everything main does, so that deferred cleanup happens before the
// process exits with the returned code.
func run() int {
	cfg, err := loadConfig()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return 2
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("Unknown log level, keeping info")
	}

	if cfg.OTel {
		shutdown, err := initTracer()
		if err != nil {
			log.Error().Err(err).Msg("Failed to initialize tracer")
			return 1
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	if cfg.Model == "" {
		log.Error().Msg("No model given (-model or model in config)")
		return 2
	}
	m, err := model.Load(cfg.Model)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load model")
		return 1
	}

	nn, err := ane.Init(m, ane.Options{DevicePath: cfg.Device, Open: openDevice, Strict: cfg.Strict})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize engine")
		return 1
	}
	defer func() {
		if err := nn.Free(); err != nil {
			log.Warn().Err(err).Msg("Failed to release engine")
		}
	}()

	// Server Mode
	if cfg.Listen != "" {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := startServer(ctx, cfg.Listen, nn, cfg.MaxQueue); err != nil {
			log.Error().Err(err).Msg("Server failed")
			return 1
		}
		return 0
	}

	if err := runOnce(context.Background(), nn, m, cfg); err != nil {
		log.Error().Err(err).Int("status", ane.Status(err)).Msg("Job failed")
		return 1
	}
	return 0
}

func runOnce(ctx context.Context, nn *ane.NN, m *model.Model, cfg config.Config) (err error) {
	_, span := otel.Tracer("anerun").Start(ctx, "runOnce")
	defer func() {
		span.SetAttributes(attribute.Int("status", ane.Status(err)))
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	inputs := make([][]byte, len(cfg.Inputs))
	for i, path := range cfg.Inputs {
		in, err := readInput(path, cfg.Float32)
		if err != nil {
			return err
		}
		inputs[i] = in
	}

	start := time.Now()
	outputs, err := runJob(nn, inputs)
	if err != nil {
		return err
	}
	log.Info().
		Str("model", m.Name).
		Int("inputs", len(inputs)).
		Int("outputs", len(outputs)).
		Dur("elapsed", time.Since(start)).
		Msg("Job complete")

	slots := m.Outputs()
	tensors := make([]export.Tensor, len(outputs))
	for i, out := range outputs {
		tensors[i] = export.Tensor{Port: i, Shape: m.Slots[slots[i]].Shape, Data: out}
	}

	rec, err := export.NewRecordBatchBuilder(memory.NewGoAllocator()).BuildRecordBatch(tensors)
	if err != nil || rec == nil {
		return err
	}
	defer rec.Release()

	var w io.Writer = os.Stdout
	if cfg.Output != "-" && cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.WriteStream(w, rec)
}

func initTracer() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(traceOut), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String("anerun"),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return tp.Shutdown, nil
}
