// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package content provides the product content agents: parsing, question
// generation, content processing, page filling, assembly and validation.
package content

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultCurrency is attached to every parsed price.
const DefaultCurrency = "INR"

// RawProduct is the flat input record, lists as comma separated strings.
type RawProduct struct {
	Name          string `json:"product_name" yaml:"product_name"`
	Concentration string `json:"concentration" yaml:"concentration"`
	SkinType      string `json:"skin_type" yaml:"skin_type"`
	Ingredients   string `json:"key_ingredients" yaml:"key_ingredients"`
	Benefits      string `json:"benefits" yaml:"benefits"`
	HowToUse      string `json:"how_to_use" yaml:"how_to_use"`
	SideEffects   string `json:"side_effects" yaml:"side_effects"`
	Price         string `json:"price" yaml:"price"`
}

// LoadRawProduct reads a RawProduct from a JSON file.
func LoadRawProduct(path string) (RawProduct, error) {
	var raw RawProduct
	data, err := os.ReadFile(path)
	if err != nil {
		return raw, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return raw, fmt.Errorf("parse product %s: %w", path, err)
	}
	return raw, nil
}

// Product is the structured form every other agent reads.
type Product struct {
	Name          string   `json:"name"`
	Concentration string   `json:"concentration"`
	SkinTypes     []string `json:"skin_types"`
	Ingredients   []string `json:"ingredients"`
	Benefits      []string `json:"benefits"`
	Usage         string   `json:"usage_instructions"`
	SideEffects   string   `json:"side_effects"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
}

// ParseProduct trims fields, splits lists and parses the price. A price
// that cannot be parsed becomes 0.
func ParseProduct(raw RawProduct) Product {
	return Product{
		Name:          strings.TrimSpace(raw.Name),
		Concentration: strings.TrimSpace(raw.Concentration),
		SkinTypes:     splitList(raw.SkinType),
		Ingredients:   splitList(raw.Ingredients),
		Benefits:      splitList(raw.Benefits),
		Usage:         strings.TrimSpace(raw.HowToUse),
		SideEffects:   strings.TrimSpace(raw.SideEffects),
		Price:         parsePrice(raw.Price),
		Currency:      DefaultCurrency,
	}
}

// Validate requires a name, ingredients, benefits and a positive price.
func (p Product) Validate() error {
	var missing []string
	if p.Name == "" {
		missing = append(missing, "name")
	}
	if len(p.Ingredients) == 0 {
		missing = append(missing, "ingredients")
	}
	if len(p.Benefits) == 0 {
		missing = append(missing, "benefits")
	}
	if len(missing) > 0 {
		return fmt.Errorf("product is missing %s", strings.Join(missing, ", "))
	}
	if p.Price <= 0 {
		return fmt.Errorf("product price must be positive, got %v", p.Price)
	}
	return nil
}

// PriceDisplay renders the price as "INR 699".
func (p Product) PriceDisplay() string {
	return formatPrice(p.Currency, p.Price)
}

func formatPrice(currency string, amount float64) string {
	return currency + " " + strconv.FormatFloat(amount, 'f', -1, 64)
}

// Describe renders the product for prompts.
func (p Product) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "- Name: %s\n", p.Name)
	fmt.Fprintf(&sb, "- Concentration: %s\n", p.Concentration)
	fmt.Fprintf(&sb, "- Skin Types: %s\n", strings.Join(p.SkinTypes, ", "))
	fmt.Fprintf(&sb, "- Key Ingredients: %s\n", strings.Join(p.Ingredients, ", "))
	fmt.Fprintf(&sb, "- Benefits: %s\n", strings.Join(p.Benefits, ", "))
	fmt.Fprintf(&sb, "- Usage: %s\n", p.Usage)
	fmt.Fprintf(&sb, "- Side Effects: %s\n", p.SideEffects)
	fmt.Fprintf(&sb, "- Price: %s\n", p.PriceDisplay())
	return sb.String()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parsePrice(s string) float64 {
	clean := strings.NewReplacer("₹", "", ",", "").Replace(s)
	v, err := strconv.ParseFloat(strings.TrimSpace(clean), 64)
	if err != nil {
		return 0
	}
	return v
}
