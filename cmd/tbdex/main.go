// Command tbdex creates and resolves DIDs, signs and verifies tbDEX messages and resources, and records verified
// messages into exchanges.
//
//	tbdex [-config path] did create [-method jwk|key|web] [-alg EdDSA|ES256K] [-origin https://example.com]
//	tbdex [-config path] did resolve <did>
//	tbdex [-config path] sign -did portable.json [-key selector] [file]
//	tbdex [-config path] verify [file]
//	tbdex [-config path] digest [file]
//	tbdex [-config path] exchange add [file]
//	tbdex [-config path] exchange show <exchange id>
//	tbdex [-config path] exchange list
//
// Input is read from stdin when no file is given.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/tbd54566975/tbdex-go/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdin, os.Stdout); err != nil {
		logrus.Fatalf("main: error: %s", err.Error())
	}
}

func run(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	flags := flag.NewFlagSet(config.ServiceName, flag.ContinueOnError)
	configPath := flags.String("config", defaultConfigPath(), "path to a TOML config file")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return errors.Wrap(err, "could not instantiate config")
	}
	if cfg == nil {
		// help or version was printed
		return nil
	}

	if logFile := configureLogger(cfg.Log); logFile != nil {
		defer func(logFile *os.File) {
			if err := logFile.Close(); err != nil {
				logrus.WithError(err).Error("failed to close log file")
			}
		}(logFile)
	}

	if cfg.Tracing.JaegerEndpoint != "" {
		tp, err := newTracerProvider(cfg)
		if err != nil {
			logrus.WithError(err).Error("could not instantiate tracer provider")
		} else {
			defer func() {
				if err := tp.Shutdown(ctx); err != nil {
					logrus.Errorf("main: failed to shutdown tracer: %s", err)
				}
			}()
		}
	}

	a, err := newApp(cfg, in, out)
	if err != nil {
		return err
	}
	return a.dispatch(ctx, flags.Args())
}

func defaultConfigPath() string {
	if path, ok := os.LookupEnv(config.ConfigPathEnv); ok {
		return path
	}
	if _, err := os.Stat(config.DefaultConfigPath); err == nil {
		return config.DefaultConfigPath
	}
	return ""
}

// newTracerProvider returns an OpenTelemetry TracerProvider configured to use the Jaeger exporter, so that DID
// resolution spans are exported to the configured collector.
func newTracerProvider(cfg *config.TBDexConfig) (*sdktrace.TracerProvider, error) {
	exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.Tracing.JaegerEndpoint)))
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(config.ServiceName),
			semconv.ServiceVersionKey.String(cfg.Version.SVN),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return tp, nil
}

// configureLogger configures the logger to log to stderr and, when a location is set, to a log file which is
// returned so it can be closed on exit
func configureLogger(cfg config.LogConfig) *os.File {
	if cfg.Level != "" {
		logLevel, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			logrus.WithError(err).Errorf("could not parse log level<%s>, setting to info", cfg.Level)
			logrus.SetLevel(logrus.InfoLevel)
		} else {
			logrus.SetLevel(logLevel)
		}
	}

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		logrus.SetReportCaller(true)
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// stdout carries command output
	logrus.SetOutput(os.Stderr)
	if cfg.Location != "" {
		now := time.Now()
		logFile := cfg.Location + "/" + config.ServiceName + "-" + now.Format(time.DateOnly) + "-" + strconv.FormatInt(now.Unix(), 10) + ".log"
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logrus.WithError(err).Warn("failed to create logs file, using default stderr")
			return nil
		}
		logrus.SetOutput(io.MultiWriter(os.Stderr, file))
		return file
	}
	return nil
}
