package mcp

import (
	"fmt"
	"strings"

	"github.com/magus-names/magus/pkg/models"
)

// formatNames formats a generation response as a text table.
func formatNames(resp *models.GenerationResponse) string {
	if resp == nil || len(resp.Names) == 0 {
		return "No names met the requested score."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-22s %6s %-10s\n", "Name", "Pronunciation", "Score", "Culture")
	b.WriteString(strings.Repeat("-", 61) + "\n")
	for _, n := range resp.Names {
		fmt.Fprintf(&b, "%-20s %-22s %6.3f %-10s\n", n.Name, n.Pronunciation, n.Score, n.Culture)
	}
	source := "generated"
	if resp.Cached {
		source = "cached"
	}
	fmt.Fprintf(&b, "\n%d name(s), %s in %.2fms (request %s)\n", len(resp.Names), source, resp.ElapsedMs, resp.RequestID)
	return b.String()
}

// formatValidation formats a pronounceability report as text.
func formatValidation(v *models.NameValidation) string {
	verdict := "pronounceable"
	if !v.Pronounceable {
		verdict = "hard to pronounce"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s (score %.3f)\n", v.Name, verdict, v.Score)
	fmt.Fprintf(&b, "  Pronunciation: %s\n", v.Pronunciation)
	fmt.Fprintf(&b, "  Syllables:     %s\n", strings.Join(v.Syllables, ", "))
	if len(v.Issues) > 0 {
		b.WriteString("  Issues:\n")
		for _, p := range v.Issues {
			fmt.Fprintf(&b, "    - %s %s (-%.2f)\n", p.Rule, p.Detail, p.Amount)
		}
	}
	return b.String()
}

// formatCultures formats culture summaries as a text table.
func formatCultures(infos []models.CultureInfo) string {
	if len(infos) == 0 {
		return "No cultures loaded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-14s %-20s %s\n", "Code", "Name", "Aliases", "Examples")
	b.WriteString(strings.Repeat("-", 80) + "\n")
	for _, c := range infos {
		fmt.Fprintf(&b, "%-12s %-14s %-20s %s\n",
			c.Code, c.Name, strings.Join(c.Aliases, ","), strings.Join(c.ExampleNames, ", "))
	}
	return b.String()
}

// formatCacheStats formats cache stats as text.
func formatCacheStats(stats models.CacheStats) string {
	return fmt.Sprintf("Cache Statistics\n"+
		"  Backend:   %s\n"+
		"  Entries:   %d\n"+
		"  Capacity:  %d\n"+
		"  Hits:      %d\n"+
		"  Misses:    %d\n"+
		"  Evictions: %d\n"+
		"  Hit Rate:  %.1f%%\n",
		stats.Backend, stats.Size, stats.Capacity, stats.Hits, stats.Misses, stats.Evictions, stats.HitRate*100)
}

// formatHistory formats stored names as a text table.
func formatHistory(records []models.NameRecord) string {
	if len(records) == 0 {
		return "No names recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-10s %-10s %6s %6s %-20s\n", "Name", "Culture", "Gender", "Score", "Uses", "Created")
	b.WriteString(strings.Repeat("-", 77) + "\n")
	for _, r := range records {
		fmt.Fprintf(&b, "%-20s %-10s %-10s %6.3f %6d %-20s\n",
			r.Name, r.Culture, r.Gender, r.Score, r.UsageCount, r.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

// formatSummary formats per-culture totals as a text table.
func formatSummary(rows []models.CultureSummary) string {
	if len(rows) == 0 {
		return "No usage data found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %8s %10s %10s %10s\n", "Culture", "Names", "Avg Score", "Usage", "Requests")
	b.WriteString(strings.Repeat("-", 54) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "%-12s %8d %10.3f %10d %10d\n", r.Culture, r.Names, r.AvgScore, r.TotalUsage, r.Requests)
	}
	return b.String()
}
