package deepseek

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Summarize erzeugt eine kompakte, faktendichte Zusammenfassung eines
// Artikeltexts. Das Publikationsdatum wird explizit in die Zusammenfassung
// eingebettet, damit die semantische Suche mit absoluten Daten arbeiten kann
// statt mit vagen Zeitbezügen.
func (c *Client) Summarize(ctx context.Context, text string, publishedAt *time.Time) (string, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 30 {
		// Zu kurz, um sinnvoll zusammengefasst zu werden.
		return trimmed, nil
	}

	dateBlock := ""
	if publishedAt != nil {
		dateBlock = fmt.Sprintf(`This article was originally published on: %s.

IMPORTANT: Always use this exact date in the summary. Do NOT convert it into
phrases like "2 days ago" or "recent". The summary is used for automated
analysis and semantic search, so including the exact ISO date is essential.

`, publishedAt.UTC().Format(time.RFC3339))
	}

	prompt := fmt.Sprintf(`%sProvide a concise, high-signal summary of the following news article.

CRITICAL SUMMARY REQUIREMENTS:

- Include the exact published date clearly inside the summary.
- Do NOT use vague time references such as "2 days ago", "yesterday",
  "last week", "recently", etc.
- Summaries will be processed by automated systems and semantic search models,
  so they must contain clear, explicit information without ambiguity.
- Include ONLY essential factual developments that matter for regulatory,
  institutional, economic, market-structure, tokenization, exchange,
  liquidity, ETF, or other crypto-relevant implications.
- Remove ALL filler, disclaimers, ads, author comments, intros, outros,
  or background fluff.
- The length should be ADAPTIVE: longer for high-information articles and
  shorter when fewer important details exist.
- Do NOT add opinions, speculation, or interpretation.
- Tone must be precise, neutral, and information-dense.

Article:
%s

Return ONLY the clean, refined summary - nothing else.`, dateBlock, trimmed)

	return c.complete(ctx, "You are a precise news summarizer.", prompt, 600, 0.2)
}
