// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/capflow/pkg/agent"
	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/llm"
	"github.com/jllopis/capflow/pkg/resilience"
	"github.com/jllopis/capflow/pkg/state"
)

// Agent ids of the content pipeline.
const (
	AgentDataParser           = "data_parser"
	AgentQuestionGenerator    = "question_generator"
	AgentBenefitsProcessor    = "benefits_processor"
	AgentIngredientsProcessor = "ingredients_processor"
	AgentUsageProcessor       = "usage_processor"
	AgentSafetyProcessor      = "safety_processor"
	AgentContentAggregator    = "content_aggregator"
	AgentFAQFiller            = "faq_filler"
	AgentProductPageFiller    = "product_page_filler"
	AgentComparisonFiller     = "comparison_filler"
	AgentPageAssembler        = "page_assembler"
	AgentOutputValidator      = "output_validator"
)

const jsonOnly = "Respond only with valid JSON."

// Pipeline builds the content agents around one text generation provider.
type Pipeline struct {
	llm     llm.Provider
	now     func() time.Time
	logger  *slog.Logger
	retry   resilience.RetryConfig
	answers int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used for page metadata.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithRetry sets how often malformed model output is regenerated.
// Provider failures are not retried here.
func WithRetry(rc resilience.RetryConfig) Option {
	return func(p *Pipeline) { p.retry = rc }
}

// WithAnswerConcurrency bounds concurrent FAQ answer calls.
func WithAnswerConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.answers = n
		}
	}
}

// New returns a Pipeline using provider for every generation step.
func New(provider llm.Provider, opts ...Option) *Pipeline {
	p := &Pipeline{
		llm:     provider,
		now:     time.Now,
		logger:  slog.Default(),
		retry:   resilience.DefaultRetryConfig().WithMaxAttempts(2),
		answers: 4,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.retry = p.retry.WithIsRecoverable(func(err error) bool {
		return stderrors.Is(err, errMalformed)
	})
	return p
}

// Agents returns the full agent set for raw, in registration order.
func (p *Pipeline) Agents(raw RawProduct) []agent.Agent {
	parsed := capability.ParseData
	return []agent.Agent{
		NewParser(raw),
		define(AgentQuestionGenerator, "generator", "Generates categorized user questions",
			capability.GenerateQuestions, []capability.Capability{parsed}, p.generateQuestions),
		define(AgentBenefitsProcessor, "processor", "Explains product benefits",
			capability.ProcessBenefits, []capability.Capability{parsed},
			processWith[BenefitsBlock](p, capability.ProcessBenefits, benefitsInstruction)),
		define(AgentIngredientsProcessor, "processor", "Describes key ingredients",
			capability.ProcessIngredients, []capability.Capability{parsed},
			processWith[IngredientsBlock](p, capability.ProcessIngredients, ingredientsInstruction)),
		define(AgentUsageProcessor, "processor", "Writes usage guidance",
			capability.ProcessUsage, []capability.Capability{parsed},
			processWith[UsageBlock](p, capability.ProcessUsage, usageInstruction)),
		define(AgentSafetyProcessor, "processor", "Writes safety guidance",
			capability.ProcessSafety, []capability.Capability{parsed},
			processWith[SafetyBlock](p, capability.ProcessSafety, safetyInstruction)),
		define(AgentContentAggregator, "aggregator", "Combines processed content blocks",
			capability.ProcessContent, []capability.Capability{
				capability.ProcessBenefits, capability.ProcessIngredients,
				capability.ProcessUsage, capability.ProcessSafety,
			}, aggregate),
		define(AgentFAQFiller, "filler", "Answers questions for the FAQ page",
			capability.FillFAQ, []capability.Capability{parsed, capability.GenerateQuestions}, p.fillFAQ),
		define(AgentProductPageFiller, "filler", "Fills the product page",
			capability.FillProductPage, []capability.Capability{parsed, capability.ProcessContent}, p.fillProductPage),
		define(AgentComparisonFiller, "filler", "Compares the product with a competitor",
			capability.FillComparison, []capability.Capability{parsed}, p.fillComparison),
		define(AgentPageAssembler, "assembler", "Collects filled pages",
			capability.FillTemplate, []capability.Capability{
				capability.FillFAQ, capability.FillProductPage, capability.FillComparison,
			}, assemble),
		define(AgentOutputValidator, "validator", "Validates filled pages",
			capability.ValidateOutput, []capability.Capability{capability.FillTemplate}, p.validate),
	}
}

// NewParser returns the agent that publishes raw as a parsed Product.
func NewParser(raw RawProduct) *agent.Basic {
	return define(AgentDataParser, "parser", "Parses the raw product record",
		capability.ParseData, nil,
		func(context.Context, state.View) (state.Update, error) {
			product := ParseProduct(raw)
			if err := product.Validate(); err != nil {
				return nil, err
			}
			return state.Update{capability.ParseData: product}, nil
		})
}

func define(id, role, desc string, provides capability.Capability, requires []capability.Capability, h agent.Handler) *agent.Basic {
	return agent.MustNew(id,
		agent.WithRole(role),
		agent.WithDescription(desc),
		agent.WithProvides(provides),
		agent.WithRequires(requires...),
		agent.WithHandler(h),
	)
}

// complete runs one prompt and returns the trimmed reply.
func (p *Pipeline) complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	req := llm.Prompt(system, user)
	req.Temperature = temperature
	req.MaxTokens = maxTokens
	resp, err := p.llm.Chat(ctx, req)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// generateJSON prompts until the reply decodes into v or retries run out.
func (p *Pipeline) generateJSON(ctx context.Context, system, user string, temperature float64, v any) error {
	return p.retry.Do(ctx, func(ctx context.Context) error {
		text, err := p.complete(ctx, system, user, temperature, 0)
		if err != nil {
			return err
		}
		return decodeJSON(text, v)
	})
}

func (p *Pipeline) generateQuestions(ctx context.Context, view state.View) (state.Update, error) {
	product, err := state.Value[Product](view, capability.ParseData)
	if err != nil {
		return nil, err
	}
	prompt := fmt.Sprintf(`Generate exactly %d user questions about this skincare product.
Distribute them across these categories: %s

Product Details:
%s
Format each question on its own line as:
[Category] Question text`, QuestionCount, strings.Join(Categories, ", "), product.Describe())

	questions, err := resilience.Retry(ctx, p.retry, func(ctx context.Context) ([]Question, error) {
		text, err := p.complete(ctx, "You are an expert at generating user questions for skincare products.", prompt, 0.7, 0)
		if err != nil {
			return nil, err
		}
		return ParseQuestions(text)
	})
	if err != nil {
		return nil, err
	}
	p.logger.DebugContext(ctx, "content.questions.generated",
		slog.Int("count", len(questions)),
		slog.Int("categories", len(CategoriesOf(questions))),
	)
	return state.Update{capability.GenerateQuestions: questions}, nil
}

const (
	benefitsInstruction = `Explain the benefits of this product. Format as JSON:
{"primary_benefit": "...", "detailed_benefits": [{"benefit": "...", "description": "..."}], "timeline": "...", "concerns_addressed": ["..."]}`

	ingredientsInstruction = `Describe the key ingredients of this product. Format as JSON:
{"key_actives": [{"name": "...", "function": "...", "concentration": "..."}], "ingredient_synergy": "...", "notable_combinations": ["..."]}`

	usageInstruction = `Write usage guidance for this product. Format as JSON:
{"steps": ["..."], "timing": "...", "tips": ["..."], "pair_with": ["..."], "avoid_with": ["..."]}`

	safetyInstruction = `Write safety guidance for this product. Format as JSON:
{"side_effects": [{"effect": "...", "management": "..."}], "contraindications": ["..."], "patch_test": "...", "warning_signs": ["..."]}`
)

func processWith[T any](p *Pipeline, c capability.Capability, instruction string) agent.Handler {
	return func(ctx context.Context, view state.View) (state.Update, error) {
		product, err := state.Value[Product](view, capability.ParseData)
		if err != nil {
			return nil, err
		}
		var block T
		prompt := instruction + "\n\nProduct Details:\n" + product.Describe()
		if err := p.generateJSON(ctx, "You are a skincare content specialist. "+jsonOnly, prompt, 0.5, &block); err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		return state.Update{c: block}, nil
	}
}

func aggregate(_ context.Context, view state.View) (state.Update, error) {
	benefits, err := state.Value[BenefitsBlock](view, capability.ProcessBenefits)
	if err != nil {
		return nil, err
	}
	ingredients, err := state.Value[IngredientsBlock](view, capability.ProcessIngredients)
	if err != nil {
		return nil, err
	}
	usage, err := state.Value[UsageBlock](view, capability.ProcessUsage)
	if err != nil {
		return nil, err
	}
	safety, err := state.Value[SafetyBlock](view, capability.ProcessSafety)
	if err != nil {
		return nil, err
	}
	return state.Update{capability.ProcessContent: map[string]any{
		BlockBenefits:    benefits,
		BlockIngredients: ingredients,
		BlockUsage:       usage,
		BlockSafety:      safety,
	}}, nil
}

func blockOf[T any](blocks map[string]any, name string) (T, error) {
	v, ok := blocks[name].(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s has no %s block", capability.ProcessContent, name)
	}
	return v, nil
}

func (p *Pipeline) fillFAQ(ctx context.Context, view state.View) (state.Update, error) {
	product, err := state.Value[Product](view, capability.ParseData)
	if err != nil {
		return nil, err
	}
	questions, err := state.Value[[]Question](view, capability.GenerateQuestions)
	if err != nil {
		return nil, err
	}

	answered := make([]Question, len(questions))
	copy(answered, questions)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.answers)
	for i := range answered {
		g.Go(func() error {
			prompt := fmt.Sprintf("Answer this question about the product:\n\n%s\nQuestion: %s\n\nProvide a clear, concise, and helpful answer (2-3 sentences):",
				product.Describe(), answered[i].Question)
			text, err := p.complete(gctx, "You are a helpful skincare expert.", prompt, 0.7, 150)
			if err != nil {
				return fmt.Errorf("answer %s: %w", answered[i].ID, err)
			}
			answered[i].Answer = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	page := &FAQPage{
		Type:           PageFAQ,
		ProductName:    product.Name,
		TotalQuestions: len(answered),
		Categories:     CategoriesOf(answered),
		Questions:      answered,
		Metadata:       newMetadata(p.now()),
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return state.Update{capability.FillFAQ: page}, nil
}

func (p *Pipeline) fillProductPage(ctx context.Context, view state.View) (state.Update, error) {
	product, err := state.Value[Product](view, capability.ParseData)
	if err != nil {
		return nil, err
	}
	blocks, err := state.Value[map[string]any](view, capability.ProcessContent)
	if err != nil {
		return nil, err
	}
	benefits, err := blockOf[BenefitsBlock](blocks, BlockBenefits)
	if err != nil {
		return nil, err
	}
	ingredients, err := blockOf[IngredientsBlock](blocks, BlockIngredients)
	if err != nil {
		return nil, err
	}
	usage, err := blockOf[UsageBlock](blocks, BlockUsage)
	if err != nil {
		return nil, err
	}
	safety, err := blockOf[SafetyBlock](blocks, BlockSafety)
	if err != nil {
		return nil, err
	}

	tagline, err := p.complete(ctx, "You are a marketing copywriter.",
		"Create a catchy, concise tagline (max 10 words) for this product:\n\n"+product.Describe(), 0.8, 30)
	if err != nil {
		return nil, fmt.Errorf("tagline: %w", err)
	}
	description, err := p.complete(ctx, "You are a product description writer.",
		"Write a compelling product description (3-4 sentences) for:\n\n"+product.Describe(), 0.7, 150)
	if err != nil {
		return nil, fmt.Errorf("description: %w", err)
	}

	page := &ProductPage{
		Type: PageProduct,
		Product: ProductSummary{
			Name:        product.Name,
			Tagline:     strings.Trim(tagline, `"`),
			Description: description,
			Price: Price{
				Amount:   product.Price,
				Currency: product.Currency,
				Display:  product.PriceDisplay(),
			},
			Concentration: product.Concentration,
			SkinTypes:     product.SkinTypes,
			KeyFeatures:   product.Benefits,
		},
		Ingredients: IngredientsSection{
			KeyActives: ingredients.KeyActives,
			FullList:   product.Ingredients,
			Synergy:    ingredients.IngredientSynergy,
		},
		Benefits: BenefitsSection{
			Primary:           benefits.PrimaryBenefit,
			Detailed:          benefits.DetailedBenefits,
			Timeline:          benefits.Timeline,
			ConcernsAddressed: benefits.ConcernsAddressed,
		},
		Usage:    usage,
		Safety:   safety,
		Metadata: newMetadata(p.now()),
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return state.Update{capability.FillProductPage: page}, nil
}

func (p *Pipeline) fillComparison(ctx context.Context, view state.View) (state.Update, error) {
	product, err := state.Value[Product](view, capability.ParseData)
	if err != nil {
		return nil, err
	}

	var rival Competitor
	rivalPrompt := fmt.Sprintf(`Create a fictional competing product to compare with:
Product A: %s
- Concentration: %s
- Price: %s

Create Product B with a similar category but a different formulation,
concentration, price point and ingredient mix, and a realistic name.

Format as JSON:
{"name": "...", "concentration": "...", "ingredients": ["..."], "benefits": ["..."], "price": 0, "currency": "INR", "skin_types": ["..."]}`,
		product.Name, product.Concentration, product.PriceDisplay())
	if err := p.generateJSON(ctx, "You are a product developer. "+jsonOnly, rivalPrompt, 0.7, &rival); err != nil {
		return nil, fmt.Errorf("competitor: %w", err)
	}
	if rival.Currency == "" {
		rival.Currency = DefaultCurrency
	}

	var cmp Comparison
	cmpPrompt := fmt.Sprintf(`Compare these two skincare products:

Product A:
%s
Product B:
%s
Provide key differences, similarities, which is better for specific
concerns, a price-value comparison and a recommendation.

Format as JSON:
{"product_a": {"name": "...", "strengths": ["..."], "weaknesses": ["..."]}, "product_b": {"name": "...", "strengths": ["..."], "weaknesses": ["..."]}, "key_differences": ["..."], "similarities": ["..."], "best_for": {"product_a": ["..."], "product_b": ["..."]}, "price_value": "...", "recommendation": "..."}`,
		product.Describe(), rival.describe())
	if err := p.generateJSON(ctx, "You are a product comparison expert. "+jsonOnly, cmpPrompt, 0.5, &cmp); err != nil {
		return nil, fmt.Errorf("comparison: %w", err)
	}

	page := &ComparisonPage{
		Type: PageComparison,
		Products: []ComparedProduct{
			{
				Name:          product.Name,
				Concentration: product.Concentration,
				Price:         product.PriceDisplay(),
				Ingredients:   product.Ingredients,
				Benefits:      product.Benefits,
				SkinTypes:     product.SkinTypes,
				Strengths:     cmp.ProductA.Strengths,
				Weaknesses:    cmp.ProductA.Weaknesses,
			},
			{
				Name:          rival.Name,
				Concentration: rival.Concentration,
				Price:         formatPrice(rival.Currency, rival.Price),
				Ingredients:   rival.Ingredients,
				Benefits:      rival.Benefits,
				SkinTypes:     rival.SkinTypes,
				Strengths:     cmp.ProductB.Strengths,
				Weaknesses:    cmp.ProductB.Weaknesses,
			},
		},
		ComparisonMatrix: &ComparisonMatrix{
			KeyDifferences: cmp.KeyDifferences,
			Similarities:   cmp.Similarities,
			BestFor:        cmp.BestFor,
			PriceValue:     cmp.PriceValue,
		},
		Recommendation: cmp.Recommendation,
		Metadata:       newMetadata(p.now()),
	}
	if err := page.Validate(); err != nil {
		return nil, err
	}
	return state.Update{capability.FillComparison: page}, nil
}

func assemble(_ context.Context, view state.View) (state.Update, error) {
	faq, err := state.Value[*FAQPage](view, capability.FillFAQ)
	if err != nil {
		return nil, err
	}
	product, err := state.Value[*ProductPage](view, capability.FillProductPage)
	if err != nil {
		return nil, err
	}
	comparison, err := state.Value[*ComparisonPage](view, capability.FillComparison)
	if err != nil {
		return nil, err
	}
	return state.Update{capability.FillTemplate: map[string]Page{
		PageFAQ:        faq,
		PageProduct:    product,
		PageComparison: comparison,
	}}, nil
}

func (p *Pipeline) validate(ctx context.Context, view state.View) (state.Update, error) {
	pages, err := state.Value[map[string]Page](view, capability.FillTemplate)
	if err != nil {
		return nil, err
	}
	report := ValidatePages(pages)
	if !report.Valid {
		p.logger.WarnContext(ctx, "content.validation.failed", slog.Any("errors", report.Errors))
	}
	return state.Update{capability.ValidateOutput: report}, nil
}
