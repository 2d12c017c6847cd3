package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/streamtools/restpub/core"
)

type Options struct {
	Config  core.Config
	Verbose bool
}

func main() {
	options, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	loggingLevel := new(slog.LevelVar)
	loggingLevel.Set(slog.LevelWarn)
	if options.Verbose {
		loggingLevel.Set(slog.LevelDebug)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: loggingLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		cancel()
	}()

	producer := core.NewProducer(options.Config)
	runner := core.NewRunner(options.Config, producer).WithLogger(logger)

	if err := runner.Run(ctx); err != nil {
		if errors.Is(err, core.ErrInterrupted) {
			fmt.Println("\n⚠️  Interrupted")
		} else {
			fmt.Fprintf(os.Stderr, "❌ Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func parseArgs(args []string) (*Options, error) {
	options := &Options{Config: core.NewConfig()}

	fs := flag.NewFlagSet("restpub", flag.ContinueOnError)
	var restAPIURL, password string
	fs.StringVar(&options.Config.Topic, "topic", "", "Topic name")
	fs.StringVar(&restAPIURL, "rest-api-url", "", "REST API base URL (e.g. https://es-demo...com)")
	fs.StringVar(&options.Config.Username, "username", "", "SCRAM username")
	fs.StringVar(&password, "password", "", "SCRAM password")
	fs.StringVar(&options.Config.Message, "message", core.DefaultMessage, "Message content")
	fs.IntVar(&options.Config.Count, "count", 1, "Number of messages")
	fs.BoolVar(&options.Config.InsecureSkipVerify, "insecure-skip-verify", true,
		"Skip TLS certificate verification (the demo gateways use self-signed certificates)")
	fs.BoolVar(&options.Verbose, "verbose", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	options.Config = options.Config.WithRestAPIURL(restAPIURL)
	options.Config.Password = core.NewSecret(password)

	if err := options.Config.Validate(); err != nil {
		fs.Usage()
		return nil, err
	}
	return options, nil
}
