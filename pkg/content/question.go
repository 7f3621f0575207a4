// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package content

import (
	"fmt"
	"strings"
)

// QuestionCount is how many questions the generator keeps.
const QuestionCount = 15

// Categories are the accepted question categories, in prompt order.
var Categories = []string{
	"Informational",
	"Safety",
	"Usage",
	"Purchase",
	"Comparison",
	"Ingredients",
	"Benefits",
}

var priorities = map[string]int{
	"Safety":        1,
	"Usage":         2,
	"Informational": 3,
	"Benefits":      4,
	"Ingredients":   5,
	"Purchase":      6,
	"Comparison":    7,
}

// Question is one generated user question, answered by the FAQ filler.
type Question struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Question string `json:"question"`
	Priority int    `json:"priority"`
	Answer   string `json:"answer,omitempty"`
}

// Priority ranks a category, lower first. Unknown categories rank 5.
func Priority(category string) int {
	if p, ok := priorities[category]; ok {
		return p
	}
	return 5
}

// ParseQuestions reads "[Category] question" lines. Lines with an unknown
// category or no text are skipped; ids are assigned Q001, Q002, ... in
// order. Fewer than QuestionCount valid lines is an error; extra lines are
// dropped.
func ParseQuestions(text string) ([]Question, error) {
	var out []Question
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		open := strings.Index(line, "[")
		if open < 0 {
			continue
		}
		end := strings.Index(line[open:], "]")
		if end < 0 {
			continue
		}
		category := strings.TrimSpace(line[open+1 : open+end])
		question := strings.TrimSpace(line[open+end+1:])
		if _, ok := priorities[category]; !ok || question == "" {
			continue
		}
		out = append(out, Question{
			ID:       fmt.Sprintf("Q%03d", len(out)+1),
			Category: category,
			Question: question,
			Priority: Priority(category),
		})
	}
	if len(out) < QuestionCount {
		return nil, fmt.Errorf("%w: only generated %d questions, need %d", errMalformed, len(out), QuestionCount)
	}
	return out[:QuestionCount], nil
}

// CategoriesOf lists the distinct categories of qs in first-seen order.
func CategoriesOf(qs []Question) []string {
	seen := make(map[string]bool)
	var out []string
	for _, q := range qs {
		if !seen[q.Category] {
			seen[q.Category] = true
			out = append(out, q.Category)
		}
	}
	return out
}
