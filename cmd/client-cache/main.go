package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mailru/easyjson"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	clientcache "github.com/always-cache/client-cache"
	"github.com/always-cache/client-cache/config"
)

var (
	// CLI flags
	configFilenameFlag string
	verbosityTraceFlag bool

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFilenameFlag, "config", "", "Config file (YAML, TOML or JSON)")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.Usage = usage

	if version == "" {
		version = "DEV"
	}
}

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), `Usage: client-cache [flags] <command> [args]

Commands:
  fetch [-X method] [-H 'Name: value']... [-mode mode] URL
  serve
  get [-X method] URL
  delete [-X method] URL
  clear

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configFilenameFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot load config")
	}
	if verbosityTraceFlag {
		cfg.Log.Level = zerolog.LevelTraceValue
	}

	// logs go to stderr so fetch output stays clean
	logger, closeLog, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot set up logging")
	}
	logger = logger.With().Str("version", version).Logger()
	log.Logger = logger

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg, logger, flag.Args(), os.Stdout)
	stop()
	closeLog()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger, args []string, out io.Writer) error {
	storage, err := cfg.OpenStorage()
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer storage.Close()

	switch args[0] {
	case "fetch":
		return runFetch(ctx, cfg, storage, logger, args[1:], out)
	case "serve":
		return runServe(ctx, cfg, storage, logger)
	case "get":
		return runGet(ctx, cfg, storage, args[1:], out)
	case "delete":
		return runDelete(ctx, storage, args[1:])
	case "clear":
		if err := storage.Clear(ctx); err != nil {
			return err
		}
		logger.Info().Msg("Cache cleared")
		return nil
	}
	return fmt.Errorf("unknown command %q", args[0])
}

// headerFlags collects repeated -H flags.
type headerFlags http.Header

func (h headerFlags) String() string {
	return fmt.Sprint(http.Header(h))
}

func (h headerFlags) Set(value string) error {
	name, v, ok := strings.Cut(value, ":")
	if !ok || strings.TrimSpace(name) == "" {
		return fmt.Errorf("header %q not in 'Name: value' form", value)
	}
	http.Header(h).Add(strings.TrimSpace(name), strings.TrimSpace(v))
	return nil
}

func runFetch(ctx context.Context, cfg *config.Config, storage config.Storage, logger zerolog.Logger, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	method := fs.String("X", http.MethodGet, "Request method")
	modeName := fs.String("mode", "", "Cache mode (overrides config)")
	header := headerFlags{}
	fs.Var(header, "H", "Request header 'Name: value' (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("fetch needs exactly one URL")
	}
	target, err := targetURL(fs.Arg(0))
	if err != nil {
		return err
	}
	if *modeName != "" {
		mode, err := clientcache.ParseMode(*modeName)
		if err != nil {
			return err
		}
		ctx = clientcache.WithMode(ctx, mode)
	}

	s, err := newServer(cfg, storage, logger)
	if err != nil {
		return err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(*method), target.String(), nil)
	if err != nil {
		return err
	}
	req.Header = http.Header(header)

	result, err := s.cache.Run(ctx, req)
	if err != nil {
		return err
	}
	if result.StoreErr != nil {
		logger.Warn().Err(result.StoreErr).Msg("Response not stored")
	}
	logger.Info().Str("outcome", result.Outcome.String()).Bool("stored", result.Stored).Msg("Fetched")

	res := result.Response
	fmt.Fprintf(out, "%s %d %s\r\n", res.Proto, res.StatusCode, http.StatusText(res.StatusCode))
	if err := res.Header.Write(out); err != nil {
		return err
	}
	fmt.Fprint(out, "\r\n")
	_, err = out.Write(res.Body)
	return err
}

func runGet(ctx context.Context, cfg *config.Config, storage config.Storage, args []string, out io.Writer) error {
	method, target, err := parseEntryArgs("get", args)
	if err != nil {
		return err
	}
	entry, ok, err := storage.Get(ctx, method, target)
	if err != nil {
		return err
	}
	if !ok {
		return clientcache.ErrCacheMiss
	}
	if _, err := easyjson.MarshalToWriter(newEntryJSON(method, target, entry, cfg.Oracle(), time.Now()), out); err != nil {
		return err
	}
	_, err = fmt.Fprintln(out)
	return err
}

func runDelete(ctx context.Context, storage config.Storage, args []string) error {
	method, target, err := parseEntryArgs("delete", args)
	if err != nil {
		return err
	}
	return storage.Delete(ctx, method, target)
}

func parseEntryArgs(name string, args []string) (string, *url.URL, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	method := fs.String("X", http.MethodGet, "Request method of the entry")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}
	if fs.NArg() != 1 {
		return "", nil, fmt.Errorf("%s needs exactly one URL", name)
	}
	target, err := targetURL(fs.Arg(0))
	return strings.ToUpper(*method), target, err
}
