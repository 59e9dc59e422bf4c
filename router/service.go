package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jbctechsolutions/intent-router/config"
	"github.com/jbctechsolutions/intent-router/language"
	"github.com/jbctechsolutions/intent-router/telemetry"
)

// Service coordinates language detection, primary classification, and the
// offline fallback. It is stateless across calls: only the compiled rule
// tables, the configuration, and the telemetry sink outlive a call, and all
// of them are read-only after construction, so concurrent calls need no
// locking beyond what the sink provides itself.
type Service struct {
	cfg      *config.Config
	detector *language.Detector
	primary  Classifier
	fallback *Fallback
	sink     telemetry.Sink

	// now is swappable for deterministic timestamps in tests.
	now func() time.Time
}

// ServiceOptions overrides the default collaborators. Any nil field keeps
// the default: the lexical model, the built-in detector, the configured
// fallback rules, and an in-memory sink.
type ServiceOptions struct {
	Primary  Classifier
	Detector *language.Detector
	Fallback *Fallback
	Sink     telemetry.Sink
	Clock    func() time.Time
}

// NewService validates the configuration once and wires the pipeline.
// Configuration errors are fatal here and never surface during routing.
func NewService(cfg *config.Config, opts *ServiceOptions) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &ServiceOptions{}
	}

	s := &Service{
		cfg:      cfg,
		detector: opts.Detector,
		primary:  opts.Primary,
		fallback: opts.Fallback,
		sink:     opts.Sink,
		now:      opts.Clock,
	}
	if s.detector == nil {
		s.detector = language.NewDetector()
	}
	if s.primary == nil {
		s.primary = NewLexicalModel(cfg)
	}
	if s.fallback == nil {
		s.fallback = NewFallback(cfg.FallbackRules)
	}
	if s.sink == nil {
		s.sink = telemetry.NewMemorySink()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Route classifies a single text. It is sugar for a one-element RouteBatch.
func (s *Service) Route(ctx context.Context, text string, opts *RouteOptions) (*Output, error) {
	if opts == nil {
		opts = &RouteOptions{}
	}
	metadata := opts.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	req := &Request{Text: text, Metadata: metadata, RequestID: opts.RequestID}

	outputs, err := s.RouteBatch(ctx, []any{req}, opts.OfflineOverride)
	if err != nil {
		return nil, err
	}
	return outputs[0], nil
}

// RouteBatch is the core pipeline. Items may be strings or *Request values;
// anything else fails normalization. The call either returns one validated
// Output per item, in input order, or fails as a whole — there is no
// partial success.
func (s *Service) RouteBatch(ctx context.Context, items []any, offlineOverride bool) ([]*Output, error) {
	normalized, err := normalize(items)
	if err != nil {
		return nil, err
	}
	if err := s.admit(normalized); err != nil {
		return nil, err
	}

	budget := time.Duration(s.cfg.LatencyBudgetSeconds * float64(time.Second))
	start := time.Now()

	// The deadline context actually bounds the primary classifier; the
	// boundary checks below preserve the call-scoped budget semantics for
	// classifiers that ignore their context.
	cctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	outputs := make([]*Output, 0, len(normalized))
	for _, chunk := range chunked(normalized, s.cfg.MaxBatchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Since(start) >= budget {
			return nil, fmt.Errorf("before chunk: %w", ErrTimeout)
		}

		chunkOutputs, err := s.routeChunk(cctx, chunk, offlineOverride)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, chunkOutputs...)

		if time.Since(start) >= budget {
			return nil, fmt.Errorf("after chunk: %w", ErrTimeout)
		}
	}
	return outputs, nil
}

// routeChunk runs detection and classification for one chunk. Unavailability
// and timeouts from the primary classifier degrade every item in the chunk
// to the fallback; any other failure aborts the call.
func (s *Service) routeChunk(ctx context.Context, chunk []*Request, offlineOverride bool) ([]*Output, error) {
	langs := make([]language.Context, len(chunk))
	for i, req := range chunk {
		langs[i] = s.detector.Detect(req.Text)
	}

	// Policy holds in every mode: the guardrail is scanned here as well as
	// inside the primary classifier, so degraded calls cannot sidestep it.
	for _, req := range chunk {
		truncated := truncate(strings.TrimSpace(req.Text), s.cfg.MaxPromptChars)
		if hit := guardrailPattern.FindString(truncated); hit != "" {
			return nil, &ContentViolationError{Matched: hit}
		}
	}

	var predictions []Prediction
	if offlineOverride {
		predictions = s.degrade(chunk, langs, "Offline override engaged")
	} else {
		var err error
		predictions, err = s.primary.Classify(ctx, chunk, langs)
		switch {
		case err == nil:
			if len(predictions) != len(chunk) {
				return nil, fmt.Errorf("classifier returned %d predictions for %d requests", len(predictions), len(chunk))
			}
		case recoverable(err):
			predictions = s.degrade(chunk, langs, err.Error())
		default:
			return nil, err
		}
	}

	outputs := make([]*Output, 0, len(chunk))
	for i, req := range chunk {
		output := s.buildOutput(req, predictions[i], langs[i])
		if err := ValidateOutput(output); err != nil {
			return nil, err
		}
		outputs = append(outputs, output)
		s.emit(output, req)
	}
	return outputs, nil
}

// degrade routes every request in the chunk through the fallback classifier,
// preserving the triggering failure as the audit reason.
func (s *Service) degrade(chunk []*Request, langs []language.Context, reason string) []Prediction {
	predictions := make([]Prediction, len(chunk))
	for i, req := range chunk {
		predictions[i] = s.fallback.Route(req, langs[i], reason)
	}
	return predictions
}

// buildOutput merges request metadata, prediction metadata, and the detector
// readings into the final record. Later merges win on key collision.
func (s *Service) buildOutput(req *Request, pred Prediction, lang language.Context) *Output {
	metadata := make(map[string]any, len(req.Metadata)+len(pred.Metadata)+3)
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	for k, v := range pred.Metadata {
		metadata[k] = v
	}
	metadata["language_detector_confidence"] = lang.Confidence
	metadata["language_detector_source"] = lang.Source
	if req.RequestID != "" {
		metadata["request_id"] = req.RequestID
	}

	return &Output{
		Intent:        pred.Intent,
		Confidence:    pred.Confidence,
		Language:      pred.Language,
		Reasoning:     pred.Reasoning,
		Timestamp:     s.now().UTC().Format(time.RFC3339Nano),
		RouterVersion: s.cfg.RouterVersion,
		FallbackUsed:  pred.FallbackUsed,
		Metadata:      metadata,
	}
}

// emit records one telemetry event per output. The sink never fails the
// routing call: errors are logged and dropped.
func (s *Service) emit(output *Output, req *Request) {
	event := map[string]any{
		"intent":         output.Intent,
		"confidence":     output.Confidence,
		"language":       output.Language,
		"fallback_used":  output.FallbackUsed,
		"request_id":     req.RequestID,
		"metadata":       output.Metadata,
		"timestamp":      output.Timestamp,
		"router_version": output.RouterVersion,
	}
	for k, v := range s.cfg.ComplianceLogContext {
		if _, ok := event[k]; !ok {
			event[k] = v
		}
	}
	if err := s.sink.Record(event); err != nil {
		log.Printf("telemetry: record error: %v", err)
	}
}

// admit is the pre-flight memory check: the whole batch is rejected before
// any classification work when its estimated size exceeds the budget. Two
// bytes per character of text.
func (s *Service) admit(reqs []*Request) error {
	var estimated int64
	for _, req := range reqs {
		estimated += int64(len([]rune(req.Text))) * 2
	}
	if estimated > s.cfg.MemoryBudgetBytes {
		return fmt.Errorf("estimated %d bytes: %w", estimated, ErrMemoryBudget)
	}
	return nil
}

// normalize wraps bare strings and accepts *Request values; any other shape
// is a type mismatch surfaced before routing begins.
func normalize(items []any) ([]*Request, error) {
	normalized := make([]*Request, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case *Request:
			if v.Metadata == nil {
				v = &Request{Text: v.Text, Metadata: map[string]any{}, RequestID: v.RequestID}
			}
			normalized = append(normalized, v)
		case Request:
			if v.Metadata == nil {
				v.Metadata = map[string]any{}
			}
			normalized = append(normalized, &v)
		case string:
			normalized = append(normalized, &Request{Text: v, Metadata: map[string]any{}})
		default:
			return nil, &TypeMismatchError{Index: i, Value: item}
		}
	}
	return normalized, nil
}

// chunked partitions requests into runs of at most size, preserving order.
// The last chunk may be partial.
func chunked(reqs []*Request, size int) [][]*Request {
	var chunks [][]*Request
	for start := 0; start < len(reqs); start += size {
		end := start + size
		if end > len(reqs) {
			end = len(reqs)
		}
		chunks = append(chunks, reqs[start:end])
	}
	return chunks
}
