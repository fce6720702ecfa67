// Package main is the Precedex CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/precedex/precedex/internal/cli"
	"github.com/precedex/precedex/internal/config"
	"github.com/precedex/precedex/internal/extract"
	"github.com/precedex/precedex/internal/intake"
	"github.com/precedex/precedex/internal/models"
	"github.com/precedex/precedex/internal/normalize"
	"github.com/precedex/precedex/internal/repository"
	"github.com/precedex/precedex/internal/search"
	"github.com/precedex/precedex/internal/server"
	"github.com/precedex/precedex/internal/vectorize"
	"github.com/precedex/precedex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/precedex/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used. When neither exists, built-in defaults apply.
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
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return config.Default(), "", nil
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
	case "fit":
		runFit()
	case "ingest":
		runIngest()
	case "search":
		runSearch()
	case "delete":
		runDelete()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("precedex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
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

	model, err := vectorize.LoadModel(cfg.Storage.ModelPath)
	if err != nil {
		logger.Fatal("Failed to load vocabulary model; run 'precedex fit' first",
			zap.String("path", cfg.Storage.ModelPath), zap.Error(err))
	}
	vectorizer := vectorize.NewVectorizer()
	vectorizer.Load(model)
	logger.Info("vocabulary model loaded",
		zap.Int("dimension", model.Dimension()),
		zap.Int("training_documents", model.Documents),
	)

	repoOpts := []repository.Option{}
	if debugMode {
		repoOpts = append(repoOpts, repository.WithLogger(logger))
	}
	repo, err := repository.New(
		cfg.Storage.DatabasePath,
		cfg.Storage.VectorLogPath,
		cfg.Storage.FilesDir,
		model.Fingerprint,
		model.Dimension(),
		repoOpts...,
	)
	if err != nil {
		logger.Fatal("Failed to open case repository", zap.Error(err))
	}
	defer repo.Close()
	if err := repo.LoadAll(context.Background()); err != nil {
		logger.Fatal("Failed to load case repository", zap.Error(err))
	}

	svcOpts := []search.ServiceOption{search.WithSnippetLength(cfg.Search.SnippetLength)}
	if debugMode {
		svcOpts = append(svcOpts, search.WithServiceLogger(logger))
	}
	service := search.NewService(extract.NewExtractor(), normalize.NewNormalizer(), vectorizer, repo, svcOpts...)

	intakeCtx, intakeCancel := context.WithCancel(context.Background())
	defer intakeCancel()
	var corpusIntake *intake.Intake
	if len(cfg.Intake.Directories) > 0 {
		corpusIntake = intake.New(service, repo, cfg.Intake, logger)
		if err := corpusIntake.Start(intakeCtx); err != nil {
			logger.Fatal("Failed to start corpus intake", zap.Error(err))
		}
	}

	srv := server.NewServer(service, repo, cfg, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if corpusIntake != nil {
		corpusIntake.Stop()
	}
	intakeCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runFit() {
	flagSet := flag.NewFlagSet("fit", flag.ExitOnError)
	configPath := flagSet.String("config", defaultConfigPath, "config file path")
	trainingDir := flagSet.String("training", "", "directory of training documents (required)")
	vocabPath := flagSet.String("vocabulary", "", "legal vocabulary JSON (default: built-in term set)")
	outputPath := flagSet.String("output", "", "model artifact path (default: storage.model_path)")
	_ = flagSet.Parse(os.Args[2:])

	if *trainingDir == "" {
		fmt.Println("Usage: precedex fit -training <dir> [flags]")
		os.Exit(1)
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	modelPath := cfg.Storage.ModelPath
	if *outputPath != "" {
		modelPath = *outputPath
	}
	if *vocabPath == "" {
		*vocabPath = cfg.Vectorizer.DomainVocabularyPath
	}

	domainTerms := vectorize.DefaultDomainTerms
	if *vocabPath != "" {
		domainTerms, err = vectorize.LoadDomainTerms(*vocabPath)
		if err != nil {
			fmt.Printf("Failed to load legal vocabulary: %v\n", err)
			os.Exit(1)
		}
	}

	extractor := extract.NewExtractor()
	normalizer := normalize.NewNormalizer()

	var corpus [][]string
	var files int
	err = filepath.WalkDir(*trainingDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		if !matchTrainingExtension(path, cfg.Intake.Extensions) {
			return nil
		}
		payload, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		text, _, err := extractor.Extract(payload, filepath.Base(path))
		if err != nil {
			fmt.Printf("Skipping %s: %v\n", path, err)
			return nil
		}
		corpus = append(corpus, normalizer.Normalize(text))
		files++
		return nil
	})
	if err != nil {
		fmt.Printf("Failed to read training directory: %v\n", err)
		os.Exit(1)
	}

	weights := vectorize.PrepareDomainWeights(normalizer, domainTerms)
	model, err := vectorize.Fit(corpus, weights, vectorize.FitOptions{
		MinDocFreq:  cfg.Vectorizer.MinDocFreq,
		MaxDocRatio: cfg.Vectorizer.MaxDocRatio,
	})
	if err != nil {
		fmt.Printf("Fit failed: %v\n", err)
		os.Exit(1)
	}
	if err := vectorize.SaveModel(modelPath, model); err != nil {
		fmt.Printf("Failed to save model: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Model fitted from %d document(s): %d terms (%d weighted legal terms)\n",
		files, model.Dimension(), len(model.DomainWeights))
	fmt.Printf("Fingerprint: %s\n", model.Fingerprint)
	fmt.Printf("Saved to: %s\n", modelPath)
}

func matchTrainingExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func runIngest() {
	flagSet := flag.NewFlagSet("ingest", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:8080", "server URL")
	id := flagSet.String("id", "", "case ID (default: generated)")
	title := flagSet.String("title", "", "case title (default: derived from file name)")
	source := flagSet.String("source", "corpus", "case source: corpus or helper")
	helperJSON := flagSet.String("helper", "", `helper extras JSON, e.g. '{"user_id":"u-1","outcome":"won"}'`)
	_ = flagSet.Parse(os.Args[2:])

	if flagSet.NArg() < 1 {
		fmt.Println("Usage: precedex ingest [flags] <document>")
		os.Exit(1)
	}
	path := flagSet.Arg(0)

	input := models.CaseInput{ID: *id, Title: *title, Source: models.Source(*source)}
	if *helperJSON != "" {
		if err := json.Unmarshal([]byte(*helperJSON), &input.Helper); err != nil {
			fmt.Printf("Invalid helper JSON: %v\n", err)
			os.Exit(1)
		}
	}
	metadata, err := json.Marshal(input)
	if err != nil {
		fmt.Printf("Failed to encode metadata: %v\n", err)
		os.Exit(1)
	}

	body, err := postDocument(*serverURL+"/api/v1/cases", path, map[string]string{"metadata": string(metadata)}, http.StatusCreated)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingest failed: %v\n", err)
		os.Exit(1)
	}
	var doc models.CaseDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Case ingested: %s (%s)\n", doc.ID, doc.Source)
}

func runSearch() {
	flagSet := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:8080", "server URL")
	topK := flagSet.Int("top-k", 0, "number of results (default: server setting)")
	minScore := flagSet.Float64("min-score", 0, "minimum similarity score in [0,1]")
	sources := flagSet.String("sources", "", "comma-separated sources to search (corpus,helper)")
	outputFormat := flagSet.String("output", "text", "output format: text, compact, or json")
	_ = flagSet.Parse(os.Args[2:])

	if flagSet.NArg() < 1 {
		fmt.Println("Usage: precedex search [flags] <document>")
		fmt.Println("Finds stored cases most similar to the given document.")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	params := url.Values{}
	if *topK > 0 {
		params.Set("top_k", fmt.Sprintf("%d", *topK))
	}
	if *minScore > 0 {
		params.Set("min_score", fmt.Sprintf("%g", *minScore))
	}
	if *sources != "" {
		params.Set("sources", *sources)
	}
	target := *serverURL + "/api/v1/search"
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	body, err := postDocument(target, flagSet.Arg(0), nil, http.StatusOK)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	var response models.SearchResponse
	if err := json.Unmarshal(body, &response); err != nil {
		fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, &response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDelete() {
	flagSet := flag.NewFlagSet("delete", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:8080", "server URL")
	_ = flagSet.Parse(os.Args[2:])

	if flagSet.NArg() < 1 {
		fmt.Println("Usage: precedex delete [flags] <case-id>")
		os.Exit(1)
	}
	caseID := flagSet.Arg(0)

	req, err := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/cases/"+url.PathEscape(caseID), nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Delete failed: %v\n", err)
		os.Exit(1)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Delete failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	fmt.Printf("Case deleted: %s\n", caseID)
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Cases                 map[string]int `json:"cases"`
	VectorDimension       int            `json:"vector_dimension"`
	VocabularyFingerprint string         `json:"vocabulary_fingerprint"`
	DiskUsageBytes        *int64         `json:"disk_usage_bytes,omitempty"`
}

func runStatus() {
	flagSet := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := flagSet.String("server", "http://localhost:8080", "server URL")
	outputFormat := flagSet.String("output", "text", "output format: text or json")
	_ = flagSet.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Status failed (%d): %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}

	switch *outputFormat {
	case "json":
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, raw, "", "  "); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(pretty.String())
	case "text":
		var status statusResponse
		if err := json.Unmarshal(raw, &status); err != nil {
			fmt.Fprintf(os.Stderr, "Decode response failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("corpus cases:       %d\n", status.Cases["corpus"])
		fmt.Printf("helper cases:       %d\n", status.Cases["helper"])
		fmt.Printf("vector_dimension:   %d\n", status.VectorDimension)
		fmt.Printf("fingerprint:        %s\n", status.VocabularyFingerprint)
		if status.DiskUsageBytes != nil {
			fmt.Printf("disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

// postDocument uploads the file at path as the multipart "document" part,
// with extra form fields, and returns the response body on wantStatus.
func postDocument(target, path string, fields map[string]string, wantStatus int) ([]byte, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	for key, value := range fields {
		if err := mw.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := http.Post(target, mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != wantStatus {
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func printUsage() {
	fmt.Println(`precedex - legal case similarity engine

Usage:
  precedex server [flags]             Start the HTTP server
  precedex fit [flags]                Fit the vocabulary model from training documents
  precedex ingest [flags] <document>  Ingest a case document
  precedex search [flags] <document>  Find cases similar to a document
  precedex delete [flags] <case-id>   Delete a case
  precedex status [flags]             Show repository status
  precedex version                    Show version
  precedex help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/precedex/config.yaml)
  --debug            Enable debug logging

Fit Flags:
  --config string      Config file path
  --training string    Directory of training documents (required)
  --vocabulary string  Legal vocabulary JSON file (default: built-in term set)
  --output string      Model artifact path (default: storage.model_path)

Ingest Flags:
  --server string    Server URL (default: http://localhost:8080)
  --id string        Case ID (default: generated)
  --title string     Case title (default: derived from file name)
  --source string    Case source: corpus or helper (default: corpus)
  --helper string    Helper extras JSON (required for helper cases)

Search Flags:
  --server string    Server URL (default: http://localhost:8080)
  --top-k int        Number of results
  --min-score float  Minimum similarity score in [0,1]
  --sources string   Comma-separated sources: corpus,helper
  --output string    Output format: text, compact, or json (default: text)

Examples:
  precedex fit -training ./corpus
  precedex server
  precedex ingest -title "Eviction notice dispute" complaint.pdf
  precedex ingest -source helper -helper '{"user_id":"u-1","outcome":"won","total_cost":1200}' my_case.docx
  precedex search -top-k 5 new_complaint.pdf
  precedex search -sources helper -output json new_complaint.pdf
  precedex delete corpus:3f7a...
  precedex status`)
}
