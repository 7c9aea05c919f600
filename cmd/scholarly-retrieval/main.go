// Package main provides the entry point for the scholarly retrieval
// service. It reads one JSON-RPC request envelope from a file or stdin,
// or builds a request from flags, dispatches it, and writes the
// response envelope to stdout. Logs go to stderr so stdout stays
// machine-readable.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/helixir/scholarly-retrieval-service/internal/aggregate"
	"github.com/helixir/scholarly-retrieval-service/internal/config"
	"github.com/helixir/scholarly-retrieval-service/internal/dispatch"
	"github.com/helixir/scholarly-retrieval-service/internal/observability"
	"github.com/helixir/scholarly-retrieval-service/internal/sources"
	"github.com/helixir/scholarly-retrieval-service/internal/sources/arxiv"
	"github.com/helixir/scholarly-retrieval-service/internal/sources/openaire"
	"github.com/helixir/scholarly-retrieval-service/internal/sources/pubmed"
	"github.com/helixir/scholarly-retrieval-service/internal/sources/scholar"
	"github.com/helixir/scholarly-retrieval-service/internal/unpaywall"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// errErrorEnvelope signals that the request completed with an error
// envelope; the envelope itself has already been written to stdout.
type errErrorEnvelope struct {
	code    int
	message string
}

func (e errErrorEnvelope) Error() string {
	return fmt.Sprintf("request failed with code %d: %s", e.code, e.message)
}

func run() error {
	var (
		requestPath  = flag.String("request", "", "path to a JSON-RPC request envelope, or - for stdin")
		query        = flag.String("query", "", "search query (builds a search request)")
		sourceList   = flag.String("sources", "", "comma-separated sources to search")
		limit        = flag.Int("limit", 0, "page size")
		offset       = flag.Int("offset", 0, "number of merged results to skip")
		yearFrom     = flag.Int("year-from", 0, "earliest publication year (inclusive)")
		yearTo       = flag.Int("year-to", 0, "latest publication year (inclusive)")
		journal      = flag.String("journal", "", "journal name filter (substring match)")
		pdfOnly      = flag.Bool("pdf-only", false, "keep only documents with a PDF link")
		fullTextOnly = flag.Bool("full-text-only", false, "keep only documents with full text")
		resolvePDFs  = flag.Bool("resolve-pdfs", true, "resolve open-access PDFs for documents without one")
		doi          = flag.String("doi", "", "DOI to fetch (builds a get_document request)")
		resultID     = flag.String("result-id", "", "source result ID to fetch (builds a get_document request)")
		source       = flag.String("source", "", "source owning the result ID")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "main").Logger()

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(cfg.Metrics.Namespace)
	}

	dispatcher, err := buildDispatcher(cfg, logger, metrics)
	if err != nil {
		return fmt.Errorf("build dispatcher: %w", err)
	}

	req, err := buildRequest(*requestPath, searchFlags{
		query:        *query,
		sources:      *sourceList,
		limit:        *limit,
		offset:       *offset,
		yearFrom:     *yearFrom,
		yearTo:       *yearTo,
		journal:      *journal,
		pdfOnly:      *pdfOnly,
		fullTextOnly: *fullTextOnly,
		resolvePDFs:  *resolvePDFs,
	}, *doi, *resultID, *source)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	resp := dispatcher.HandleRaw(ctx, req)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode response: %w", err)
	}

	if resp.Error != nil {
		return errErrorEnvelope{code: resp.Error.Code, message: resp.Error.Message}
	}
	return nil
}

type searchFlags struct {
	query        string
	sources      string
	limit        int
	offset       int
	yearFrom     int
	yearTo       int
	journal      string
	pdfOnly      bool
	fullTextOnly bool
	resolvePDFs  bool
}

// buildRequest assembles the raw request envelope: from a file or stdin
// when -request is given, otherwise from the search or document flags.
func buildRequest(requestPath string, sf searchFlags, doi, resultID, source string) ([]byte, error) {
	if requestPath != "" {
		if requestPath == "-" {
			raw, err := io.ReadAll(os.Stdin)
			if err != nil {
				return nil, fmt.Errorf("read request from stdin: %w", err)
			}
			return raw, nil
		}
		raw, err := os.ReadFile(requestPath)
		if err != nil {
			return nil, fmt.Errorf("read request file: %w", err)
		}
		return raw, nil
	}

	if doi != "" || resultID != "" {
		params := dispatch.GetDocumentParams{
			ResultID:   resultID,
			Source:     source,
			DOI:        doi,
			ResolvePDF: &sf.resolvePDFs,
		}
		return marshalRequest(dispatch.MethodGetDocument, params)
	}

	if sf.query != "" {
		params := dispatch.SearchParams{
			Query:        sf.query,
			Journal:      sf.journal,
			Limit:        sf.limit,
			Offset:       sf.offset,
			PDFOnly:      sf.pdfOnly,
			FullTextOnly: sf.fullTextOnly,
			ResolvePDFs:  &sf.resolvePDFs,
		}
		if sf.sources != "" {
			params.Sources = strings.Split(sf.sources, ",")
		}
		if sf.yearFrom > 0 {
			params.YearFrom = &sf.yearFrom
		}
		if sf.yearTo > 0 {
			params.YearTo = &sf.yearTo
		}
		return marshalRequest(dispatch.MethodSearch, params)
	}

	return nil, fmt.Errorf("nothing to do: pass -request, -query, -doi, or -result-id")
}

func marshalRequest(method string, params any) ([]byte, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}
	return json.Marshal(dispatch.Request{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  rawParams,
	})
}

// buildDispatcher wires the configured sources, the open-access
// resolver, and the aggregator into a dispatcher.
func buildDispatcher(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*dispatch.Dispatcher, error) {
	registry := sources.NewRegistry()

	registry.Register(scholar.New(scholar.Config{
		BaseURL:   cfg.Sources.GoogleScholar.BaseURL,
		APIKey:    cfg.Sources.GoogleScholar.APIKey,
		Timeout:   cfg.Sources.GoogleScholar.Timeout,
		RateLimit: cfg.Sources.GoogleScholar.RateLimit,
		Enabled:   cfg.Sources.GoogleScholar.Enabled,
	}, nil))

	registry.Register(pubmed.New(pubmed.Config{
		BaseURL:   cfg.Sources.PubMed.BaseURL,
		Email:     cfg.Sources.PubMed.Email,
		APIKey:    cfg.Sources.PubMed.APIKey,
		Timeout:   cfg.Sources.PubMed.Timeout,
		RateLimit: cfg.Sources.PubMed.RateLimit,
		Enabled:   cfg.Sources.PubMed.Enabled,
	}, nil))

	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:   cfg.Sources.ArXiv.BaseURL,
		Timeout:   cfg.Sources.ArXiv.Timeout,
		RateLimit: cfg.Sources.ArXiv.RateLimit,
		Enabled:   cfg.Sources.ArXiv.Enabled,
	}, nil))

	registry.Register(openaire.New(openaire.Config{
		BaseURL:   cfg.Sources.OpenAIRE.BaseURL,
		Timeout:   cfg.Sources.OpenAIRE.Timeout,
		RateLimit: cfg.Sources.OpenAIRE.RateLimit,
		Enabled:   cfg.Sources.OpenAIRE.Enabled,
	}, nil))

	resolver, err := unpaywall.New(unpaywall.Config{
		BaseURL:       cfg.Unpaywall.BaseURL,
		Email:         cfg.Unpaywall.Email,
		Enabled:       cfg.Unpaywall.Enabled,
		Timeout:       cfg.Unpaywall.Timeout,
		RateLimit:     cfg.Unpaywall.RateLimit,
		CacheCapacity: cfg.Unpaywall.CacheCapacity,
		CacheTTL:      cfg.Unpaywall.CacheTTL,
		Logger:        logger,
		Metrics:       metrics,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("create unpaywall client: %w", err)
	}

	aggregator, err := aggregate.New(aggregate.Config{
		Registry:            registry,
		Unpaywall:           resolver,
		SearchCacheCapacity: cfg.Cache.Capacity,
		SearchCacheTTL:      cfg.Cache.TTL,
		Logger:              logger,
		Metrics:             metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create aggregator: %w", err)
	}

	return dispatch.New(dispatch.Config{
		Aggregator:     aggregator,
		RequestTimeout: cfg.Request.Timeout,
		Logger:         logger,
		Metrics:        metrics,
	}), nil
}
