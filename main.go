package main

import (
	"flag"
	"io"
	"os"
	"os/signal"

	"github.com/ptgott/onemail/dispatch"
	"github.com/ptgott/onemail/userconfig"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Log with filename and line number. This writes to stderr, so it should
	// be thread safe.
	// https://github.com/rs/zerolog/blob/7ccd4c940bf8a02fcc5f10e5475f9d3daff04d57/log/log.go#L13
	log.Logger = log.With().Caller().Logger()

	// Intercept interrupts so we can get more visibility into them.
	// A send blocks for at most the configured timeout, but the user might
	// not want to wait that long.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func(c chan os.Signal) {
		<-sigCh
		log.Info().Msg("interrupt: exiting")
		os.Exit(1)
	}(sigCh)

	configPath := flag.String(
		"config",
		"./config.yaml",
		"path to a YAML file containing your configuration",
	)
	to := flag.String(
		"to",
		"",
		"recipient address (defaults to the \"from\" address in the config)",
	)
	toName := flag.String(
		"toname",
		"",
		"recipient display name",
	)
	subject := flag.String(
		"subject",
		"",
		"message subject",
	)
	body := flag.String(
		"body",
		"",
		"message body (read from stdin if empty)",
	)
	noEmail := flag.Bool(
		"noemail",
		false,
		"print the message to stdout instead of sending it",
	)
	level := flag.String(
		"level",
		"info",
		`log level: "info", "debug", or "warn"`,
	)
	flag.Parse()

	switch *level {
	case "debug":
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "warn":
		log.Logger = log.Logger.Level(zerolog.WarnLevel)
	default:
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	log.Info().
		Str("configPath", *configPath).
		Msg("starting the application")

	f, err := os.Open(*configPath)

	if err != nil {
		log.Error().
			Str("config-path", *configPath).
			Err(err).
			Msg("We can't open the application config file")
		os.Exit(1)
	}

	config, err := userconfig.Parse(f)
	f.Close()

	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem parsing your config")
		os.Exit(1)
	}

	checkedConfig, err := config.CheckAndSetDefaults()
	if err != nil {
		log.Error().
			Err(err).
			Msg("Problem validating your config")
		os.Exit(1)
	}

	log.Info().Str("configPath", *configPath).Msg("successfully validated the config")

	req := dispatch.Request{
		ToName:    *toName,
		ToAddress: *to,
		Subject:   *subject,
		Body:      *body,
		DryRun:    *noEmail,
		Output:    os.Stdout,
	}

	// With no recipient, send a test message to yourself.
	if req.ToAddress == "" {
		req.ToName = checkedConfig.EmailSettings.From.Name
		req.ToAddress = checkedConfig.EmailSettings.From.Address.String()
	}

	if req.Body == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Error().Err(err).Msg("can't read the message body from stdin")
			os.Exit(1)
		}
		req.Body = string(b)
	}

	if err := dispatch.Run(&checkedConfig, req); err != nil {
		os.Exit(1)
	}
}
