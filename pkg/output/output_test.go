// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jllopis/capflow/pkg/capability"
	"github.com/jllopis/capflow/pkg/content"
	"github.com/jllopis/capflow/pkg/state"
)

func TestWriteArtifacts(t *testing.T) {
	pages := map[string]content.Page{
		content.PageFAQ: &content.FAQPage{
			Type:        content.PageFAQ,
			ProductName: "Serum",
			Questions:   []content.Question{{ID: "Q001", Category: "Safety", Question: "Safe?", Answer: "Yes."}},
		},
		content.PageComparison: &content.ComparisonPage{
			Type:     content.PageComparison,
			Products: []content.ComparedProduct{{Name: "A"}, {Name: "B"}},
		},
	}
	view := state.New(state.Update{capability.FillTemplate: pages})
	dir := filepath.Join(t.TempDir(), "out")

	paths, err := WriteArtifacts(dir, view)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "faq.json"),
		filepath.Join(dir, "comparison_page.json"),
	}, paths)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	var faq map[string]any
	require.NoError(t, json.Unmarshal(data, &faq))
	require.Equal(t, "faq", faq["page_type"])
	require.Equal(t, "Serum", faq["product_name"])
	require.Contains(t, string(data), "\n  \"product_name\"")
}

func TestWriteArtifactsWithoutPages(t *testing.T) {
	_, err := WriteArtifacts(t.TempDir(), state.New(nil))
	require.ErrorContains(t, err, "fill_template")
}
