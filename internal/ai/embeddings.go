package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"ai-search-service/internal/logger"

	genai "github.com/google/generative-ai-go/genai"
)

// EmbeddingClient converts text into fixed-length vectors. Implementations
// must preprocess and truncate text client-side so callers stay
// provider-agnostic.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// GeminiEmbedder implements EmbeddingClient on Google Generative AI.
type GeminiEmbedder struct {
	client      *genai.Client
	model       string
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	batchSize   int
	maxChars    int
	timeout     time.Duration
}

type RateLimits struct {
	RPM int // Requests per minute
	TPM int // Tokens per minute
	RPD int // Requests per day
}

func getRateLimits(tier string) RateLimits {
	switch tier {
	case "free":
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	case "tier1":
		return RateLimits{RPM: 1000, TPM: 1000000, RPD: 10000}
	case "tier2":
		return RateLimits{RPM: 2000, TPM: 4000000, RPD: 50000}
	default:
		return RateLimits{RPM: 10, TPM: 250000, RPD: 250}
	}
}

// GeminiOptions tunes the embedder. Zero values fall back to defaults.
type GeminiOptions struct {
	Model     string // e.g. "text-embedding-004"
	Tier      string // "free", "tier1", "tier2"
	BatchSize int    // texts per provider call, default 10
	MaxChars  int    // hard truncation limit, default 8000
	Timeout   time.Duration
}

func NewGeminiEmbedder(apiKey string, opts GeminiOptions) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	if opts.Model == "" {
		opts.Model = "text-embedding-004"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 8000
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	limits := getRateLimits(opts.Tier)

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiEmbeddings",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})

	// RPM limit with some buffer
	rateLimiter := rate.NewLimiter(rate.Limit(float64(limits.RPM)*0.9/60.0), limits.RPM/10+1)

	return &GeminiEmbedder{
		client:      client,
		model:       opts.Model,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		batchSize:   opts.BatchSize,
		maxChars:    opts.MaxChars,
		timeout:     opts.Timeout,
	}, nil
}

// Embed returns the embedding vector for a single text.
func (ge *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ge.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches, issued sequentially
// so a failure is attributable to a specific sub-batch. The returned slice
// is positional: result[i] corresponds to texts[i].
func (ge *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	tracer := otel.Tracer("gemini-embeddings")
	ctx, span := tracer.Start(ctx, "gemini.embed_batch")
	defer span.End()
	span.SetAttributes(
		attribute.Int("gemini.texts", len(texts)),
		attribute.String("gemini.model", ge.model),
	)

	results := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += ge.batchSize {
		end := start + ge.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		sub := texts[start:end]

		if err := ge.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}

		vecs, err := ge.embedSubBatch(ctx, sub)
		if err != nil {
			span.SetAttributes(attribute.Bool("gemini.error", true))
			return nil, fmt.Errorf("embedding sub-batch %d-%d: %w", start, end-1, err)
		}
		results = append(results, vecs...)
	}

	return results, nil
}

func (ge *GeminiEmbedder) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, ge.timeout)
	defer cancel()

	result, err := ge.breaker.Execute(func() (interface{}, error) {
		model := ge.client.EmbeddingModel(ge.model)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(PreprocessText(text, ge.maxChars)))
		}
		resp, err := model.BatchEmbedContents(callCtx, batch)
		if err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("provider returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		vecs := make([][]float32, len(resp.Embeddings))
		for i, emb := range resp.Embeddings {
			if emb == nil {
				return nil, fmt.Errorf("no embedding returned for text %d", i)
			}
			vecs[i] = emb.Values
		}
		return vecs, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([][]float32), nil
}

// Close releases the underlying provider client.
func (ge *GeminiEmbedder) Close() error {
	if ge.client != nil {
		return ge.client.Close()
	}
	return nil
}

// PreprocessText collapses whitespace runs to single spaces, trims, and
// hard-truncates to maxChars to respect provider token limits.
func PreprocessText(text string, maxChars int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if maxChars > 0 && len(cleaned) > maxChars {
		cleaned = cleaned[:maxChars]
	}
	return cleaned
}
