// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"fmt"
	"strings"
	"time"
)

// Page types, also the keys of the fill_template payload.
const (
	PageFAQ        = "faq"
	PageProduct    = "product"
	PageComparison = "comparison"
)

// PageVersion is stamped into every page's metadata.
const PageVersion = "1.0"

// Page is a filled template ready to be written out.
type Page interface {
	PageType() string
	Validate() error
}

// Metadata is attached to every page.
type Metadata struct {
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
}

func newMetadata(now time.Time) Metadata {
	return Metadata{GeneratedAt: now.UTC(), Version: PageVersion}
}

// FAQPage lists the answered questions.
type FAQPage struct {
	Type           string     `json:"page_type"`
	ProductName    string     `json:"product_name"`
	TotalQuestions int        `json:"total_questions"`
	Categories     []string   `json:"categories"`
	Questions      []Question `json:"questions"`
	Metadata       Metadata   `json:"metadata"`
}

// PageType implements Page.
func (p *FAQPage) PageType() string { return PageFAQ }

// Validate requires a product name and at least one question.
func (p *FAQPage) Validate() error {
	var missing []string
	if p.Type == "" {
		missing = append(missing, "page_type")
	}
	if p.ProductName == "" {
		missing = append(missing, "product_name")
	}
	if len(p.Questions) == 0 {
		missing = append(missing, "questions")
	}
	return missingFields(PageFAQ, missing)
}

// Price is a displayable amount.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Display  string  `json:"display"`
}

// ProductSummary is the product section of the product page.
type ProductSummary struct {
	Name          string   `json:"name"`
	Tagline       string   `json:"tagline"`
	Description   string   `json:"description"`
	Price         Price    `json:"price"`
	Concentration string   `json:"concentration"`
	SkinTypes     []string `json:"skin_types"`
	KeyFeatures   []string `json:"key_features"`
}

// IngredientsSection is the ingredients section of the product page.
type IngredientsSection struct {
	KeyActives []ActiveIngredient `json:"key_actives"`
	FullList   []string           `json:"full_list"`
	Synergy    string             `json:"synergy"`
}

// BenefitsSection is the benefits section of the product page.
type BenefitsSection struct {
	Primary           string            `json:"primary"`
	Detailed          []DetailedBenefit `json:"detailed"`
	Timeline          string            `json:"timeline"`
	ConcernsAddressed []string          `json:"concerns_addressed"`
}

// ProductPage is the full product description page.
type ProductPage struct {
	Type        string             `json:"page_type"`
	Product     ProductSummary     `json:"product"`
	Ingredients IngredientsSection `json:"ingredients"`
	Benefits    BenefitsSection    `json:"benefits"`
	Usage       UsageBlock         `json:"usage"`
	Safety      SafetyBlock        `json:"safety"`
	Metadata    Metadata           `json:"metadata"`
}

// PageType implements Page.
func (p *ProductPage) PageType() string { return PageProduct }

// Validate requires name, price, ingredients, benefits and usage.
func (p *ProductPage) Validate() error {
	var missing []string
	if p.Product.Name == "" {
		missing = append(missing, "product.name")
	}
	if p.Product.Price.Amount <= 0 {
		missing = append(missing, "product.price")
	}
	if len(p.Ingredients.FullList) == 0 && len(p.Ingredients.KeyActives) == 0 {
		missing = append(missing, "ingredients")
	}
	if p.Benefits.Primary == "" && len(p.Product.KeyFeatures) == 0 {
		missing = append(missing, "benefits")
	}
	if len(p.Usage.Steps) == 0 {
		missing = append(missing, "usage")
	}
	return missingFields(PageProduct, missing)
}

// ComparedProduct is one column of the comparison page.
type ComparedProduct struct {
	Name          string   `json:"name"`
	Concentration string   `json:"concentration"`
	Price         string   `json:"price"`
	Ingredients   []string `json:"ingredients"`
	Benefits      []string `json:"benefits"`
	SkinTypes     []string `json:"skin_types"`
	Strengths     []string `json:"strengths"`
	Weaknesses    []string `json:"weaknesses"`
}

// ComparisonMatrix holds the side by side analysis.
type ComparisonMatrix struct {
	KeyDifferences []string `json:"key_differences"`
	Similarities   []string `json:"similarities"`
	BestFor        BestFor  `json:"best_for"`
	PriceValue     string   `json:"price_value"`
}

// ComparisonPage compares the product with a competitor.
type ComparisonPage struct {
	Type             string            `json:"page_type"`
	Products         []ComparedProduct `json:"products"`
	ComparisonMatrix *ComparisonMatrix `json:"comparison_matrix"`
	Recommendation   string            `json:"recommendation"`
	Metadata         Metadata          `json:"metadata"`
}

// PageType implements Page.
func (p *ComparisonPage) PageType() string { return PageComparison }

// Validate requires exactly two products and a comparison matrix.
func (p *ComparisonPage) Validate() error {
	if len(p.Products) != 2 {
		return fmt.Errorf("%s page: need exactly 2 products, got %d", PageComparison, len(p.Products))
	}
	if p.ComparisonMatrix == nil {
		return missingFields(PageComparison, []string{"comparison_matrix"})
	}
	return nil
}

func missingFields(page string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%s page: missing %s", page, strings.Join(missing, ", "))
}

// Report is the validate_output payload.
type Report struct {
	Valid  bool              `json:"valid"`
	Pages  []string          `json:"pages"`
	Errors map[string]string `json:"errors,omitempty"`
}

// ValidatePages checks every page and reports per page errors.
func ValidatePages(pages map[string]Page) Report {
	r := Report{Valid: true}
	for _, name := range []string{PageFAQ, PageProduct, PageComparison} {
		var err error
		if page, ok := pages[name]; ok {
			r.Pages = append(r.Pages, name)
			err = page.Validate()
		} else {
			err = fmt.Errorf("%s page: not generated", name)
		}
		if err != nil {
			if r.Errors == nil {
				r.Errors = make(map[string]string)
			}
			r.Errors[name] = err.Error()
			r.Valid = false
		}
	}
	return r
}
