// Package main is the schemalign CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/schemalign/internal/canon"
	"github.com/hyperjump/schemalign/internal/cli"
	"github.com/hyperjump/schemalign/internal/config"
	"github.com/hyperjump/schemalign/internal/embedding"
	"github.com/hyperjump/schemalign/internal/ingest"
	"github.com/hyperjump/schemalign/internal/keyword"
	"github.com/hyperjump/schemalign/internal/lock"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/oracle"
	"github.com/hyperjump/schemalign/internal/server"
	"github.com/hyperjump/schemalign/internal/storage"
	"github.com/hyperjump/schemalign/internal/vector"
	"github.com/hyperjump/schemalign/internal/watcher"
	"github.com/hyperjump/schemalign/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/schemalign/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if it exists; when neither exists the config comes from defaults and the
// environment. Returns the config and the path that was loaded ("" for none).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
		if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
			cfg, err := config.Default()
			if err != nil {
				return nil, "", err
			}
			return cfg, "", nil
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "classify":
		runClassify()
	case "features":
		runFeatures()
	case "decisions":
		runDecisions()
	case "status":
		runStatus()
	case "watch":
		runWatch()
	case "version", "--version", "-v":
		fmt.Printf("schemalign version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// commonFlags are shared by every command that opens the registry directly.
type commonFlags struct {
	configPath *string
	registry   *string
	debug      *bool
	output     *string
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		registry:   fs.String("registry", "", "registry collection (default from config)"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		output:     fs.String("output", "text", "output format: text or json"),
	}
}

// session is an opened config, logger and component set for one command.
type session struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	components *Components
	format     cli.OutputFormat
	registry   string
}

func (s *session) Close() {
	s.components.Close()
	_ = s.logger.Sync()
}

func openSession(flags commonFlags) *session {
	format, err := cli.ParseOutputFormat(*flags.output)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg, resolvedConfigPath, err := loadConfig(*flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *flags.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	registry := *flags.registry
	if registry == "" {
		registry = cfg.Registry.Name
	}
	return &session{
		cfg:        cfg,
		configPath: resolvedConfigPath,
		logger:     logger,
		components: components,
		format:     format,
		registry:   registry,
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (watch events, per-column decisions)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	watchOpts := []watcher.Option{
		watcher.WithDebounce(cfg.Watch.Debounce),
		watcher.WithRecursive(cfg.Watch.RecursiveOrDefault()),
	}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.New(cfg.Watch.Directories, components.Pipeline, ingestMetadata(cfg, "", "", ""), watchOpts...)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	watchSvc.SyncExistingFiles()

	srv := server.NewServer(server.Deps{
		Canon:    components.Canon,
		Catalog:  components.Catalog,
		Pipeline: components.Pipeline,
		Records:  components.Records,
		Watch:    watchSvc,
	}, cfg, resolvedConfigPath, logger)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
	watchCancel()
	watchSvc.Stop()
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	flags := addCommonFlags(fs)
	region := fs.String("region", "", "region tag (default from config)")
	school := fs.String("school", "", "school tag (default from config)")
	activity := fs.String("activity", "", "activity tag (default from config)")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: schemalign ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}

	s := openSession(flags)
	defer s.Close()

	meta := ingestMetadata(s.cfg, *region, *school, *activity)
	pipeline := s.components.Pipeline.ForRegistry(s.registry)
	ctx := context.Background()

	var results []*ingest.Result
	for _, path := range fs.Args() {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
			os.Exit(1)
		}
		if info.IsDir() {
			n, err := pipeline.IngestDirectory(ctx, path, meta, s.cfg.Ingest.Concurrency)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Ingesting directory failed: %v\n", err)
				os.Exit(1)
			}
			if s.format == cli.OutputText {
				fmt.Printf("Ingested %d file(s) from %s\n", n, path)
			}
			continue
		}
		res, err := pipeline.IngestFile(ctx, path, meta)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingesting %s failed: %v\n", path, err)
			os.Exit(1)
		}
		results = append(results, res)
	}
	if err := cli.WriteIngestResults(os.Stdout, results, s.format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runClassify() {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	flags := addCommonFlags(fs)
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: schemalign classify [flags] <feature-name> [sample-value...]")
		os.Exit(1)
	}
	req := models.ClassifyRequest{Name: fs.Arg(0), Values: fs.Args()[1:]}
	if err := req.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid feature: %v\n", err)
		os.Exit(1)
	}

	s := openSession(flags)
	defer s.Close()

	ctx := context.Background()
	reg, err := s.components.Catalog.Open(ctx, s.registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Opening registry failed: %v\n", err)
		os.Exit(1)
	}
	decision, err := s.components.Canon.SmartLoad(ctx, reg, req.Name, req.Values)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Classification failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteDecision(os.Stdout, decision, s.format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runFeatures() {
	fs := flag.NewFlagSet("features", flag.ExitOnError)
	flags := addCommonFlags(fs)
	countOnly := fs.Bool("count", false, "print only the number of registered features")
	search := fs.String("search", "", "find features sharing terms with this name")
	fuzzy := fs.Bool("fuzzy", false, "with --search, tolerate typos")
	_ = fs.Parse(os.Args[2:])

	s := openSession(flags)
	defer s.Close()

	ctx := context.Background()
	reg, err := s.components.Catalog.Open(ctx, s.registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Opening registry failed: %v\n", err)
		os.Exit(1)
	}
	if *countOnly {
		n, err := reg.Count(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Count failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteCount(os.Stdout, s.registry, n, s.format)
		return
	}
	names, err := reg.Names(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing features failed: %v\n", err)
		os.Exit(1)
	}
	if *search != "" {
		hits, err := keyword.SearchNames(names, *search, &keyword.SearchOptions{Fuzzy: *fuzzy})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Feature search failed: %v\n", err)
			os.Exit(1)
		}
		_ = cli.WriteSearchHits(os.Stdout, s.registry, *search, hits, s.format)
		return
	}
	_ = cli.WriteFeatures(os.Stdout, s.registry, names, s.format)
}

func runDecisions() {
	fs := flag.NewFlagSet("decisions", flag.ExitOnError)
	flags := addCommonFlags(fs)
	limit := fs.Int("limit", 50, "maximum decisions to show")
	offset := fs.Int("offset", 0, "decisions to skip")
	all := fs.Bool("all", false, "show decisions for every registry")
	_ = fs.Parse(os.Args[2:])

	s := openSession(flags)
	defer s.Close()

	filter := models.DecisionFilter{Registry: s.registry, Limit: *limit, Offset: *offset}
	if *all {
		filter.Registry = ""
	}
	decisions, err := s.components.Records.ListDecisions(context.Background(), filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listing decisions failed: %v\n", err)
		os.Exit(1)
	}
	_ = cli.WriteDecisions(os.Stdout, decisions, s.format)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var status map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	if format == cli.OutputJSON {
		_ = cli.WriteJSON(os.Stdout, status)
		return
	}
	for _, line := range flattenStatus("", status) {
		fmt.Println(line)
	}
}

// flattenStatus renders a decoded status document as sorted "a.b: value" lines.
func flattenStatus(prefix string, v map[string]interface{}) []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var lines []string
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v[k].(type) {
		case map[string]interface{}:
			lines = append(lines, flattenStatus(key, val)...)
		case []interface{}:
			parts := make([]string, len(val))
			for i, item := range val {
				parts[i] = fmt.Sprint(item)
			}
			lines = append(lines, fmt.Sprintf("%s: [%s]", key, strings.Join(parts, ", ")))
		default:
			lines = append(lines, fmt.Sprintf("%s: %v", key, val))
		}
	}
	return lines
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: schemalign watch <add|remove|list> [path]")
		fmt.Println("  schemalign watch add <path>     Add an inbox directory")
		fmt.Println("  schemalign watch remove <path>  Stop watching a directory")
		fmt.Println("  schemalign watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "server URL")
	_ = fs.Parse(os.Args[3:])
	endpoint := *serverURL + "/api/v1/watch/directories"
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: schemalign watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		body, _ := json.Marshal(map[string]interface{}{"path": path, "sync": true})
		resp, err := http.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Add failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: schemalign watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, endpoint+"?path="+url.QueryEscape(path), nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("Remove failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := http.Get(endpoint)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			fmt.Printf("List failed (%d): %s\n", resp.StatusCode, string(b))
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			fmt.Printf("Parse failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

// argsReorder moves any flags (and their values) that appear after the positional arguments to
// the front so that flag.Parse sees them. The flag package stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// ingestMetadata returns the configured ingest tags with any non-empty flag value taking
// precedence. IngestionTime is left for the pipeline to stamp.
func ingestMetadata(cfg *config.Config, region, school, activity string) models.Metadata {
	meta := models.Metadata{
		Region:   cfg.Ingest.Region,
		School:   cfg.Ingest.School,
		Activity: cfg.Ingest.Activity,
	}
	if region != "" {
		meta.Region = region
	}
	if school != "" {
		meta.School = school
	}
	if activity != "" {
		meta.Activity = activity
	}
	return meta
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Store    vector.Store
	Catalog  *vector.Catalog
	Canon    *canon.Canonicalizer
	Records  *storage.SQLiteStore
	Sink     storage.Sink
	Pipeline *ingest.Pipeline
	closers  []func() error
}

// Close releases components in reverse order of creation. The memory vector store writes its
// snapshot on Close.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	fail := func(err error) (*Components, error) {
		c.Close()
		return nil, err
	}

	embedder, err := embedding.New(embedding.Options{
		Provider:   cfg.Embedding.Provider,
		Dimensions: cfg.Embedding.Dimensions,
		CacheSize:  cfg.Embedding.CacheSize,
		ModelPath:  cfg.Embedding.ModelPath,
		OutputName: cfg.Embedding.OutputName,
		MaxTokens:  cfg.Embedding.MaxTokens,
		BaseURL:    cfg.Embedding.BaseURL,
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		Timeout:    cfg.Embedding.Timeout,
	}, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize embedder: %w", err))
	}
	c.Embedder = embedder
	c.closers = append(c.closers, embedder.Close)

	store, err := vector.NewStore(cfg.Vector.Backend, vector.StoreOptions{
		SnapshotPath: cfg.Vector.SnapshotPath,
		Qdrant: vector.QdrantConfig{
			URL:     cfg.Vector.QdrantURL,
			APIKey:  cfg.Vector.QdrantAPIKey,
			Timeout: cfg.Vector.Timeout,
		},
	})
	if err != nil {
		return fail(fmt.Errorf("failed to initialize vector store: %w", err))
	}
	c.Store = store
	c.closers = append(c.closers, store.Close)
	c.Catalog = vector.NewCatalog(store, embedder.Dimensions())
	logger.Info("vector store initialized",
		zap.String("backend", cfg.Vector.Backend),
		zap.Int("dimensions", embedder.Dimensions()))

	orc, err := newOracle(cfg, logger)
	if err != nil {
		return fail(err)
	}

	locker, err := newLocker(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}

	records, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize storage: %w", err))
	}
	c.Records = records
	c.closers = append(c.closers, records.Close)

	sinks := storage.Multi{records}
	if cfg.Storage.MongoURL != "" {
		mongoSink, err := storage.NewMongoSink(ctx, storage.MongoConfig{
			ConnectionURL: cfg.Storage.MongoURL,
			Database:      cfg.Storage.MongoDatabase,
			Collection:    cfg.Storage.MongoCollection,
		})
		if err != nil {
			return fail(fmt.Errorf("failed to initialize mongo sink: %w", err))
		}
		c.closers = append(c.closers, mongoSink.Close)
		sinks = append(sinks, mongoSink)
	}
	c.Sink = sinks

	violation, err := oracle.ParsePolicy(cfg.Registry.ViolationPolicy)
	if err != nil {
		return fail(err)
	}
	failure, err := canon.ParseFailurePolicy(cfg.Registry.FailurePolicy)
	if err != nil {
		return fail(err)
	}
	c.Canon = canon.New(embedder, orc,
		canon.WithThreshold(cfg.Registry.Threshold),
		canon.WithPageSize(cfg.Registry.PageSize),
		canon.WithBatchSize(cfg.Registry.BatchSize),
		canon.WithSampleSize(cfg.Registry.SampleSize),
		canon.WithViolationPolicy(violation),
		canon.WithFailurePolicy(failure),
		canon.WithRecorder(records),
		canon.WithLocker(locker),
		canon.WithLogger(logger),
	)
	c.Pipeline = ingest.New(c.Canon, c.Catalog, cfg.Registry.Name, c.Sink, ingest.WithLogger(logger))
	return c, nil
}

func newOracle(cfg *config.Config, logger *zap.Logger) (oracle.Oracle, error) {
	switch cfg.Oracle.Provider {
	case "static", "":
		return oracle.StaticOracle{}, nil
	case "openai":
		return oracle.NewOpenAIOracle(oracle.OpenAIConfig{
			BaseURL:           cfg.Oracle.BaseURL,
			APIKey:            cfg.Oracle.APIKey,
			Model:             cfg.Oracle.Model,
			MaxValues:         cfg.Oracle.MaxValues,
			RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
			Timeout:           cfg.Oracle.Timeout,
			Logger:            logger,
		}), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

func newLocker(ctx context.Context, cfg *config.Config, logger *zap.Logger) (lock.Locker, error) {
	if cfg.Lock.RedisURL == "" {
		return lock.NewLocal(), nil
	}
	redisCfg := lock.RedisConfig{
		ConnectionURL:  cfg.Lock.RedisURL,
		TTL:            cfg.Lock.TTL,
		ConnectTimeout: cfg.Lock.Timeout,
	}
	client, err := lock.Connect(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return lock.NewRedis(client, redisCfg, logger), nil
}

func printUsage() {
	fmt.Println(`schemalign - Semantic feature canonicalization engine

Usage:
  schemalign server [flags]                      Start the HTTP server and inbox watcher
  schemalign ingest [flags] <path>...            Canonicalize and store tabular files
  schemalign classify [flags] <name> [value...]  Resolve one feature name
  schemalign features [flags]                    List registered canonical features
  schemalign decisions [flags]                   Show the decision log
  schemalign status [flags]                      Show server status
  schemalign watch <add|remove|list>             Manage watched inbox directories
  schemalign version                             Show version
  schemalign help                                Show this help

Common Flags (ingest, classify, features, decisions):
  --config string    Config file path (default: /usr/local/etc/schemalign/config.yaml)
  --registry string  Registry collection (default from config)
  --debug            Enable debug logging
  --output string    Output format: text or json (default: text)

Ingest Flags:
  --region string    Region tag (default from config)
  --school string    School tag (default from config)
  --activity string  Activity tag (default from config)

Features Flags:
  --count            Print only the feature count
  --search string    Find features sharing terms with a name
  --fuzzy            With --search, tolerate typos

Decisions Flags:
  --limit int        Maximum decisions to show (default: 50)
  --offset int       Decisions to skip
  --all              Include every registry

Status and Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Commands that open the registry directly should not run alongside a server that uses the
memory vector backend; use the HTTP API instead.

Examples:
  schemalign server
  schemalign ingest --region north --school s1 --activity census data.csv
  schemalign classify Age_Years 12 14 15
  schemalign features --count
  schemalign features --search "student name" --fuzzy
  schemalign decisions --output json
  schemalign watch add /srv/inbox`)
}
