package aggregate

import (
	"fmt"
	"strings"
)

// ReviewInput is one video's contribution to the generation prompt.
type ReviewInput struct {
	Title      string
	Channel    string
	Views      int64
	Duration   string
	Summary    string
	Transcript string
}

// BuildPrompt assembles the analyst prompt from per-video summaries and
// transcript excerpts, truncated to the character budget. The overall
// shape (numbered reviews, analysis checklist) is what the generation
// model is tuned against downstream; keep additions at the end.
func BuildPrompt(productName, searchQuery string, reviews []ReviewInput, totalViews int64, excerptChars, maxChars int) string {
	var reviewsText strings.Builder
	for i, r := range reviews {
		excerpt := r.Transcript
		if len(excerpt) > excerptChars {
			excerpt = excerpt[:excerptChars] + "..."
		}
		fmt.Fprintf(&reviewsText, `
Review %d:
- Video: %s
- Channel: %s
- Views: %d
- Duration: %s

Summary:
%s

Transcript excerpt:
%s

---
`, i+1, r.Title, r.Channel, r.Views, r.Duration, r.Summary, excerpt)
	}

	header := fmt.Sprintf(`You are analyzing %d YouTube reviews of the %s.

Original Search Query: %s
Product: %s
Total Reviews Analyzed: %d
Total Views: %d

Individual Reviews (with summaries and transcript excerpts):
`, len(reviews), productName, searchQuery, productName, len(reviews), totalViews)

	footer := `

Please provide a comprehensive analysis that includes:

1. **Product Overview**: What is this product and its main features?
2. **Consensus Analysis**: What do most reviewers agree on? (pros and cons)
3. **Key Strengths**: What are the most commonly praised aspects?
4. **Common Concerns**: What issues or drawbacks are frequently mentioned?
5. **Price-Performance**: How do reviewers rate the value for money?
6. **Target Audience**: Who would benefit most from this product?
7. **Overall Recommendation**: What's the general consensus on whether to buy?

Format the analysis with clear sections and bullet points where
appropriate. Keep it comprehensive but concise (around 500-700 words)
and focus on actionable insights for potential buyers.`

	body := reviewsText.String()
	budget := maxChars - len(header) - len(footer)
	if budget > 0 && len(body) > budget {
		body = body[:budget]
	}

	return header + body + footer
}
