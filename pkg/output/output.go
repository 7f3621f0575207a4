// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package output writes the pages of a finished run to disk.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/content"
	"github.com/jllopis/capflow/pkg/state"
)

// FileNames maps page types to artifact file names.
var FileNames = map[string]string{
	content.PageFAQ:        "faq.json",
	content.PageProduct:    "product_page.json",
	content.PageComparison: "comparison_page.json",
}

var pageOrder = []string{content.PageFAQ, content.PageProduct, content.PageComparison}

// WriteArtifacts writes every page found in the fill_template value of view
// into dir and returns the written paths in page order.
func WriteArtifacts(dir string, view state.View) ([]string, error) {
	pages, err := state.Value[map[string]content.Page](view, capability.FillTemplate)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	for _, name := range pageOrder {
		page, ok := pages[name]
		if !ok {
			continue
		}
		path := filepath.Join(dir, FileNames[name])
		if err := WriteJSON(path, page); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// WriteJSON writes v to path as indented JSON.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
