// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
)

// Block names used as keys of the process_content payload.
const (
	BlockBenefits    = "benefits"
	BlockIngredients = "ingredients"
	BlockUsage       = "usage"
	BlockSafety      = "safety"
)

// DetailedBenefit explains one benefit.
type DetailedBenefit struct {
	Benefit     string `json:"benefit"`
	Description string `json:"description"`
}

// BenefitsBlock is the processed benefits content.
type BenefitsBlock struct {
	PrimaryBenefit    string            `json:"primary_benefit"`
	DetailedBenefits  []DetailedBenefit `json:"detailed_benefits"`
	Timeline          string            `json:"timeline"`
	ConcernsAddressed []string          `json:"concerns_addressed"`
}

// ActiveIngredient describes one key active.
type ActiveIngredient struct {
	Name          string `json:"name"`
	Function      string `json:"function"`
	Concentration string `json:"concentration"`
}

// IngredientsBlock is the processed ingredients content.
type IngredientsBlock struct {
	KeyActives          []ActiveIngredient `json:"key_actives"`
	IngredientSynergy   string             `json:"ingredient_synergy"`
	NotableCombinations []string           `json:"notable_combinations"`
}

// UsageBlock is the processed usage content.
type UsageBlock struct {
	Steps     []string `json:"steps"`
	Timing    string   `json:"timing"`
	Tips      []string `json:"tips"`
	PairWith  []string `json:"pair_with"`
	AvoidWith []string `json:"avoid_with"`
}

// SideEffect pairs an effect with how to manage it.
type SideEffect struct {
	Effect     string `json:"effect"`
	Management string `json:"management"`
}

// SafetyBlock is the processed safety content.
type SafetyBlock struct {
	SideEffects       []SideEffect `json:"side_effects"`
	Contraindications []string     `json:"contraindications"`
	PatchTest         string       `json:"patch_test"`
	WarningSigns      []string     `json:"warning_signs"`
}

// Competitor is the fictional product generated for comparisons.
type Competitor struct {
	Name          string   `json:"name"`
	Concentration string   `json:"concentration"`
	Ingredients   []string `json:"ingredients"`
	Benefits      []string `json:"benefits"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
	SkinTypes     []string `json:"skin_types"`
}

func (c Competitor) describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Name: %s\n", c.Name)
	fmt.Fprintf(&sb, "- Concentration: %s\n", c.Concentration)
	fmt.Fprintf(&sb, "- Ingredients: %s\n", strings.Join(c.Ingredients, ", "))
	fmt.Fprintf(&sb, "- Benefits: %s\n", strings.Join(c.Benefits, ", "))
	fmt.Fprintf(&sb, "- Price: %s\n", formatPrice(c.Currency, c.Price))
	fmt.Fprintf(&sb, "- Skin Types: %s\n", strings.Join(c.SkinTypes, ", "))
	return sb.String()
}

// Assessment lists one product's strengths and weaknesses.
type Assessment struct {
	Name       string   `json:"name"`
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// BestFor states who each product suits.
type BestFor struct {
	ProductA []string `json:"product_a"`
	ProductB []string `json:"product_b"`
}

// Comparison is the analysis of two products.
type Comparison struct {
	ProductA       Assessment `json:"product_a"`
	ProductB       Assessment `json:"product_b"`
	KeyDifferences []string   `json:"key_differences"`
	Similarities   []string   `json:"similarities"`
	BestFor        BestFor    `json:"best_for"`
	PriceValue     string     `json:"price_value"`
	Recommendation string     `json:"recommendation"`
}

// errMalformed marks model output that could not be used. Agents retry
// generation on it.
var errMalformed = stderrors.New("malformed model output")

// decodeJSON unmarshals the outermost JSON object found in model output,
// ignoring surrounding prose and markdown code fences.
func decodeJSON(text string, v any) error {
	body := text
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		body = body[start : end+1]
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	return nil
}
