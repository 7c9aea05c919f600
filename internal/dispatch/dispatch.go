// Package dispatch exposes the service's operations behind a JSON-RPC
// 2.0 request envelope: it decodes and validates parameters, routes to
// the aggregator, and maps the error taxonomy onto response codes.
// Errors never escape as panics or raw Go errors; every outcome is an
// envelope.
package dispatch

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/helixir/scholarly-retrieval-service/internal/aggregate"
	"github.com/helixir/scholarly-retrieval-service/internal/domain"
	"github.com/helixir/scholarly-retrieval-service/internal/observability"
)

// Method names accepted by the dispatcher.
const (
	MethodSearch      = "search"
	MethodGetDocument = "get_document"
)

// DefaultRequestTimeout bounds a single request end to end, covering
// every upstream call made on its behalf.
const DefaultRequestTimeout = 60 * time.Second

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope. Exactly one of Result
// and Error is set.
type Response struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      any          `json:"id"`
	Result  any          `json:"result,omitempty"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// SearchParams are the wire parameters of the search method.
type SearchParams struct {
	Query        string   `json:"query" validate:"required"`
	Sources      []string `json:"sources" validate:"omitempty,dive,oneof=google_scholar pubmed arxiv openaire"`
	YearFrom     *int     `json:"year_from" validate:"omitempty,gte=1000,lte=2100"`
	YearTo       *int     `json:"year_to" validate:"omitempty,gte=1000,lte=2100"`
	Journal      string   `json:"journal"`
	Limit        int      `json:"limit" validate:"omitempty,gte=1,lte=100"`
	Offset       int      `json:"offset" validate:"omitempty,gte=0"`
	PDFOnly      bool     `json:"pdf_only"`
	FullTextOnly bool     `json:"full_text_only"`

	// ResolvePDFs defaults to true when omitted.
	ResolvePDFs *bool `json:"resolve_pdfs"`
}

// GetDocumentParams are the wire parameters of the get_document method.
type GetDocumentParams struct {
	ResultID string `json:"result_id"`
	Source   string `json:"source" validate:"omitempty,oneof=google_scholar pubmed arxiv openaire"`
	DOI      string `json:"doi"`

	// ResolvePDF defaults to true when omitted.
	ResolvePDF *bool `json:"resolve_pdf"`
}

// Config holds dispatcher construction parameters.
type Config struct {
	Aggregator *aggregate.Aggregator

	// RequestTimeout bounds a single request. Defaults to
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Dispatcher routes request envelopes to operations.
type Dispatcher struct {
	aggregator *aggregate.Aggregator
	timeout    time.Duration
	validate   *validator.Validate
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// New creates a dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	return &Dispatcher{
		aggregator: cfg.Aggregator,
		timeout:    cfg.RequestTimeout,
		validate:   validator.New(),
		logger:     cfg.Logger.With().Str("component", "dispatch").Logger(),
		metrics:    cfg.Metrics,
	}
}

// HandleRaw decodes a JSON request envelope and dispatches it. Malformed
// JSON yields a parse-error envelope; this method never returns an error.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) Response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, CodeParseError, "invalid JSON: "+err.Error(), nil)
	}
	return d.Handle(ctx, req)
}

// Handle dispatches one request envelope. The returned response always
// carries the request's ID and exactly one of result or error.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (resp Response) {
	requestID := uuid.New().String()
	ctx = observability.WithRequestID(ctx, requestID)
	ctx = observability.WithMethod(ctx, req.Method)
	logger := observability.WithRequestContext(d.logger, requestID, req.Method)

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("request handler panicked")
			resp = errorResponse(req.ID, CodeInternalError, "internal error", nil)
		}
		d.observe(req.Method, time.Since(start), resp)
		logger.Info().
			Dur("duration", time.Since(start)).
			Bool("ok", resp.Error == nil).
			Msg("request handled")
	}()

	if req.JSONRPC != "" && req.JSONRPC != "2.0" {
		return errorResponse(req.ID, CodeInvalidRequest, "unsupported jsonrpc version", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	switch req.Method {
	case MethodSearch:
		return d.handleSearch(ctx, logger, req)
	case MethodGetDocument:
		return d.handleGetDocument(ctx, logger, req)
	case "":
		return errorResponse(req.ID, CodeInvalidRequest, "method is required", nil)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, "unknown method: "+req.Method, nil)
	}
}

func (d *Dispatcher) handleSearch(ctx context.Context, logger zerolog.Logger, req Request) Response {
	var params SearchParams
	if resp, ok := d.decodeParams(req, &params); !ok {
		return resp
	}

	query := domain.SearchQuery{
		Query:        params.Query,
		YearFrom:     params.YearFrom,
		YearTo:       params.YearTo,
		Journal:      params.Journal,
		Limit:        params.Limit,
		Offset:       params.Offset,
		PDFOnly:      params.PDFOnly,
		FullTextOnly: params.FullTextOnly,
		ResolvePDFs:  params.ResolvePDFs == nil || *params.ResolvePDFs,
	}
	for _, s := range params.Sources {
		query.Sources = append(query.Sources, domain.SourceType(s))
	}

	result, err := d.aggregator.Search(ctx, query)
	if err != nil {
		logger.Warn().Str("query", params.Query).Err(err).Msg("search failed")
		return errorFromDomain(req.ID, err)
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: result}
}

func (d *Dispatcher) handleGetDocument(ctx context.Context, logger zerolog.Logger, req Request) Response {
	var params GetDocumentParams
	if resp, ok := d.decodeParams(req, &params); !ok {
		return resp
	}

	ref := domain.DocumentRef{
		ResultID:   params.ResultID,
		Source:     domain.SourceType(params.Source),
		DOI:        params.DOI,
		ResolvePDF: params.ResolvePDF == nil || *params.ResolvePDF,
	}

	doc, err := d.aggregator.GetDocument(ctx, ref)
	if err != nil {
		logger.Warn().Str("doi", params.DOI).Str("result_id", params.ResultID).Err(err).Msg("document lookup failed")
		return errorFromDomain(req.ID, err)
	}
	return Response{JSONRPC: "2.0", ID: req.ID, Result: doc}
}

// decodeParams unmarshals and validates the request parameters. The
// second return value is false when the returned response is an error
// envelope the caller should hand back as-is.
func (d *Dispatcher) decodeParams(req Request, params any) (Response, bool) {
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, params); err != nil {
			return errorResponse(req.ID, CodeInvalidParams, "malformed params: "+err.Error(), nil), false
		}
	}
	if err := d.validate.Struct(params); err != nil {
		return errorResponse(req.ID, CodeInvalidParams, validationMessage(err), nil), false
	}
	return Response{}, true
}

func (d *Dispatcher) observe(method string, duration time.Duration, resp Response) {
	if d.metrics == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	d.metrics.RequestsTotal.WithLabelValues(method).Inc()
	d.metrics.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
	if resp.Error != nil {
		d.metrics.RequestsFailed.WithLabelValues(method, codeLabel(resp.Error.Code)).Inc()
	}
}

// validationMessage flattens a validator error into a single readable
// message naming the offending fields.
func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	msg := "invalid params:"
	for _, fe := range verrs {
		msg += " " + fe.Field() + " failed " + fe.Tag() + ";"
	}
	return msg
}
