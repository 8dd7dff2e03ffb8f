package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"desktour/internal/core/match"
	"desktour/internal/logger"
	"desktour/internal/platform/eino"
	"desktour/internal/utils/markdown"
	"desktour/prompts"

	gemini "github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/eino-contrib/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Categories the extraction prompt is allowed to choose from. They are finer
// than marketplace taxonomies on purpose; the scorer treats category
// agreement as advisory.
var productCategories = []string{
	"keyboard", "mouse", "monitor", "desk", "chair", "lighting",
	"camera", "lens", "microphone", "audio", "pc", "storage", "accessory", "other",
}

// Service turns transcripts and article bodies into extracted product
// mentions via a schema-constrained LLM call.
type Service struct {
	log           *logger.Logger
	llm           *eino.Service
	systemPrompts *prompts.SystemPrompts
}

func NewService(llm *eino.Service) *Service {
	return &Service{
		log:           logger.New("ExtractService"),
		llm:           llm,
		systemPrompts: prompts.NewSystemPrompts(),
	}
}

// createExtractionSchema forces the LLM to return a valid product mention array.
func createExtractionSchema() *jsonschema.Schema {
	confidenceValues := []any{"high", "medium", "low"}
	return &jsonschema.Schema{
		Type: string(schema.Array),
		Items: &jsonschema.Schema{
			Type:     string(schema.Object),
			Required: []string{"name", "category", "confidence", "reason"},
			Properties: orderedmap.New[string, *jsonschema.Schema](
				orderedmap.WithInitialData[string, *jsonschema.Schema](
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "name",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "The product name as stated in the content",
						},
					},
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "brand",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "Brand name when stated or unambiguous, otherwise null",
						},
					},
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "category",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "Closest matching product category",
							Enum:        toAnySlice(productCategories),
						},
					},
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "subcategory",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "Optional free-form refinement of the category",
						},
					},
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "confidence",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "Extraction confidence tier",
							Enum:        confidenceValues,
						},
					},
					orderedmap.Pair[string, *jsonschema.Schema]{
						Key: "reason",
						Value: &jsonschema.Schema{
							Type:        string(schema.String),
							Description: "Where in the content the product was mentioned",
						},
					},
				),
			),
		},
	}
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// ExtractProducts runs the extraction call. A failed LLM call or an
// undecodable response is fatal for the job: reconciliation needs
// well-formed input, there is nothing sensible to fall back to.
func (s *Service) ExtractProducts(ctx context.Context, sourceURL, content string) ([]match.ExtractedProduct, *eino.TokenUsage, error) {
	content = prepareContent(content)
	if strings.TrimSpace(content) == "" {
		return nil, nil, fmt.Errorf("no content to analyze")
	}

	templateVars := map[string]any{
		"source_url": sourceURL,
		"content":    content,
		"categories": strings.Join(productCategories, ", "),
	}
	messages, err := s.systemPrompts.ProductExtraction.Format(ctx, templateVars)
	if err != nil {
		return nil, nil, fmt.Errorf("extraction template: %w", err)
	}

	s.log.LogInfof("extracting products from %s (%d chars)", sourceURL, len(content))
	response, tokenUsage, err := s.llm.GenerateWithTokenUsage(ctx, messages,
		model.WithTemperature(0.1),
		model.WithMaxTokens(2000),
		gemini.WithResponseJSONSchema(createExtractionSchema()),
	)
	if err != nil {
		return nil, tokenUsage, fmt.Errorf("extraction call: %w", err)
	}

	products, err := decodeProducts(response.Content)
	if err != nil {
		s.log.LogErrorf("extraction response undecodable: %v", err)
		return nil, tokenUsage, err
	}

	s.log.LogSuccessf("extracted %d products from %s", len(products), sourceURL)
	return products, tokenUsage, nil
}

type linkVerdict struct {
	URL      string `json:"url"`
	Official bool   `json:"official"`
}

// TriageLinks asks the model which candidate URLs are official brand pages.
// Best effort: on failure the caller keeps its heuristic set.
func (s *Service) TriageLinks(ctx context.Context, urls []string) (map[string]bool, error) {
	if len(urls) == 0 {
		return nil, nil
	}
	messages, err := s.systemPrompts.LinkTriage.Format(ctx, map[string]any{
		"urls": strings.Join(urls, "\n"),
	})
	if err != nil {
		return nil, fmt.Errorf("triage template: %w", err)
	}
	response, err := s.llm.Generate(ctx, messages,
		model.WithTemperature(0.0),
		model.WithMaxTokens(1000),
	)
	if err != nil {
		return nil, fmt.Errorf("triage call: %w", err)
	}

	var verdicts []linkVerdict
	if err := json.Unmarshal([]byte(stripFences(response.Content)), &verdicts); err != nil {
		return nil, fmt.Errorf("invalid triage response: %w", err)
	}
	out := make(map[string]bool, len(verdicts))
	for _, v := range verdicts {
		out[v.URL] = v.Official
	}
	return out, nil
}

// prepareContent converts HTML input to markdown and caps the size to keep
// token usage bounded.
func prepareContent(content string) string {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "<!DOCTYPE") || strings.HasPrefix(trimmed, "<html") ||
		strings.Contains(trimmed[:min(len(trimmed), 512)], "<body") {
		trimmed = markdown.ConvertHTMLToMarkdown(trimmed)
	}
	const maxLength = 15000
	if len(trimmed) > maxLength {
		trimmed = trimmed[:maxLength] + "\n...[content truncated for processing]"
	}
	return trimmed
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func decodeProducts(content string) ([]match.ExtractedProduct, error) {
	var products []match.ExtractedProduct
	if err := json.Unmarshal([]byte(stripFences(content)), &products); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}

	// Entries without a name are malformed; drop rather than reconcile them.
	out := products[:0]
	for _, p := range products {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		if p.Confidence != match.ConfidenceHigh && p.Confidence != match.ConfidenceMedium && p.Confidence != match.ConfidenceLow {
			p.Confidence = match.ConfidenceLow
		}
		out = append(out, p)
	}
	return out, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
