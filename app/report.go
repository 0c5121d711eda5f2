package app

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"govariant/domain/features"
)

// RenderMarkdown renders a human-readable summary of a training run.
func RenderMarkdown(result *TrainingResult) string {
	var b strings.Builder
	m := result.Manifest

	fmt.Fprintf(&b, "# Training run %s\n\n", m.RunID)
	fmt.Fprintf(&b, "| Parameter | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Schema | %s |\n", m.SchemaVersion)
	fmt.Fprintf(&b, "| Seed | %d |\n", m.Seed)
	fmt.Fprintf(&b, "| Test fraction | %g |\n", m.TestFraction)
	fmt.Fprintf(&b, "| Threshold | %g |\n", m.Threshold)
	fmt.Fprintf(&b, "| Train / test | %d / %d |\n", m.TrainSize, m.TestSize)
	fmt.Fprintf(&b, "| Pathogenic train / test | %d / %d |\n", result.Split.TrainByLabel[1], result.Split.TestByLabel[1])
	fmt.Fprintf(&b, "| Benign train / test | %d / %d |\n", result.Split.TrainByLabel[0], result.Split.TestByLabel[0])
	fmt.Fprintf(&b, "| Fingerprint | `%s` |\n", m.Fingerprint.Fingerprint)
	fmt.Fprintf(&b, "| Runtime | %d ms |\n\n", result.RuntimeMs)

	fmt.Fprintf(&b, "## Input\n\n")
	fmt.Fprintf(&b, "%d records read, %d accepted, %d excluded.\n\n", result.Summary.Total, result.Summary.Accepted, result.Summary.Excluded)
	if result.Summary.Excluded > 0 {
		fmt.Fprintf(&b, "| Reason | Count |\n|---|---|\n")
		for _, reason := range result.Summary.Reasons() {
			fmt.Fprintf(&b, "| %s | %d |\n", reason, result.Summary.ByReason[reason])
		}
		b.WriteString("\n")
		for _, ex := range result.Summary.Samples {
			fmt.Fprintf(&b, "- row %d: %s\n", ex.Index, ex.Error)
		}
		b.WriteString("\n")
	}

	if len(result.Profile) > 0 {
		fmt.Fprintf(&b, "## Training features\n\n")
		fmt.Fprintf(&b, "| Feature | Pathogenic mean ± sd | Benign mean ± sd | Separation | Outliers |\n")
		fmt.Fprintf(&b, "|---|---|---|---|---|\n")
		for _, p := range result.Profile {
			fmt.Fprintf(&b, "| %s | %.3f ± %.3f | %.3f ± %.3f | %.2f | %d |\n", p.Feature,
				p.Pathogenic.Mean, p.Pathogenic.StdDev, p.Benign.Mean, p.Benign.StdDev,
				p.Separation, p.Pathogenic.Outliers+p.Benign.Outliers)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Candidates\n\n")
	fmt.Fprintf(&b, "| Rank | Kind | ROC-AUC | PR-AUC | Precision | Recall | Accuracy | TP | FP | TN | FN |\n")
	fmt.Fprintf(&b, "|---|---|---|---|---|---|---|---|---|---|---|\n")
	for i, kind := range result.Ranking {
		r, ok := result.Report(kind)
		if !ok {
			continue
		}
		c := r.Confusion
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %.4f | %.4f | %.4f | %d | %d | %d | %d |\n",
			i+1, kind, formatMetric(r.ROCAUC), formatMetric(r.PRAUC),
			c.Precision(), c.Recall(), c.Accuracy(),
			c.TruePositives, c.FalsePositives, c.TrueNegatives, c.FalseNegatives)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## Selected model\n\n")
	fmt.Fprintf(&b, "**%s** published as `%s`.\n\n", result.Selected, result.Handle)
	if r, ok := result.Report(result.Selected); ok && len(r.Importance) > 0 {
		fmt.Fprintf(&b, "| Feature | Importance |\n|---|---|\n")
		for _, fw := range sortedImportance(r.Importance) {
			fmt.Fprintf(&b, "| %s | %.4f |\n", fw.Name, fw.Weight)
		}
	}
	return b.String()
}

func sortedImportance(imp features.Importance) features.Importance {
	out := append(features.Importance(nil), imp...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	return out
}

// RenderHTML renders the markdown report as a standalone HTML page.
func RenderHTML(result *TrainingResult) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: fmt.Sprintf("Training run %s", result.Manifest.RunID),
	})
	return markdown.ToHTML([]byte(RenderMarkdown(result)), p, renderer)
}
