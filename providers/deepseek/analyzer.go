package deepseek

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"crypto-pulse/providers"
)

const analysisSystemPrompt = "You are a crypto market analyst."

// buildAnalysisPrompt baut den Analyse-Prompt aus Artikel und
// Referenz-Kontext. Ohne Referenzen steht im Kontext-Block "None".
func buildAnalysisPrompt(title, summary string, refs []providers.Reference) string {
	referenceBlock := "None"
	if len(refs) > 0 {
		var b strings.Builder
		for i, ref := range refs {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "- Title: %s\n  Summary: %s", ref.Title, ref.Summary)
		}
		referenceBlock = b.String()
	}

	return fmt.Sprintf(`You are a professional crypto market analyst writing concise research analyses
for traders and investors.

All articles are already crypto-related.
Your task is to assess **how much this news is likely to impact the crypto market**.

IMPORTANT CONCEPT:
- Some news is relevant but has **low or negligible market impact**.
- In such cases, clearly state that impact is limited and assign a low score.
- Do NOT exaggerate impact where none exists.

========================
NEWS ARTICLE
Title: %s

Summary:
%s
========================

REFERENCE CONTEXT (background only):
%s
========================

OUTPUT FORMAT (FOLLOW EXACTLY):

ANALYSIS (KEY POINTS):
- <Why this news matters OR why its market impact is limited>
- <Expected effect on behavior, sentiment, or liquidity (if any)>

IMPACT STRENGTH (0-100):
<single integer only>

IMPACT SCORING GUIDANCE:
- 0-20  : Informational; unlikely to affect prices or sentiment
- 20-40 : Minor or indirect impact; limited to niche participants
- 40-60 : Moderate impact; sector-specific or narrative-driven
- 60-80 : Strong impact; likely to influence prices or sentiment
- 80-100: High impact; broadly market-moving

TIME HORIZON:
<Short-term (0-7 days) | Medium-term (7-30 days) | Long-term (30-90 days)>

MARKET SENTIMENT:
<Bullish | Bearish | Neutral>

PRICE EFFECT:
<Likely Up | Likely Down | Likely Volatile | Neutral>

SECTORS AFFECTED (choose 1-3 only):
- <Sector>: <short justification>

COINS AFFECTED (if any):
- <SYMBOL>: <short reason>
(If none, write: None)

RISK FACTORS / LIMITATIONS:
- <Why this news may not materially move the market>
- <Key uncertainty or dependency>

RULES:
- No long paragraphs or storytelling.
- Do not force impact where none exists.
- Base conclusions strictly on the article and context.

END.
`, title, summary, referenceBlock)
}

// AnalyzeArticle bewertet die Marktwirkung eines Artikels. Die Roh-Antwort
// des Modells wird unverändert zurückgegeben und vom Aufrufer persistiert.
func (c *Client) AnalyzeArticle(ctx context.Context, title, summary string, refs []providers.Reference) (string, error) {
	prompt := buildAnalysisPrompt(title, summary, refs)

	c.Logger.Debug("Starte DeepSeek-Analyse",
		zap.String("title", title),
		zap.Int("reference_count", len(refs)))

	return c.complete(ctx, analysisSystemPrompt, prompt, 900, 0.3)
}
