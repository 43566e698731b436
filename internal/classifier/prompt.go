package classifier

import "strings"

const promptTemplate = `Analyze this social media post and classify it into specific categories and niches.

Return a JSON object with:
- "categories": object mapping category/niche names (lowercase) to relevance scores (0.0-1.0). Include both broad categories and specific niches.
- "confidence": float (0.0-1.0) indicating how confident you are in this classification

IMPORTANT:
- Only include categories that are actually relevant to the post. Do NOT include categories with 0 relevance.
- Prioritize specific niches over generic labels where possible.

Example 1 (Gaming):
Post: "I love Counter Strike more than #CS:GO"
Output: { "categories": { "gaming": 0.9, "fps": 0.85, "counter-strike": 0.8 }, "confidence": 0.95 }

Example 2 (Lifestyle):
Post: "Why is nobody smoking anymore? It kinda fell off."
Output: { "categories": { "culture": 0.8, "health": 0.7, "trends": 0.9, "smoking": 0.95 }, "confidence": 0.9 }

POST: "{{content}}"

Respond with ONLY the JSON object.`

// BuildPrompt embeds content in the fixed classification instructions.
func BuildPrompt(content string) string {
	return strings.Replace(promptTemplate, "{{content}}", content, 1)
}
