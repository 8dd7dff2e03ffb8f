package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

// Following prompt design principles:
// 1. Specify the model's thinking order
// 2. Use markdown for structure
// 3. Assign clear roles
// 4. Use "Important" and "ALWAYS" for critical instructions
// 5. Be explicit about expected outputs

// createProductExtractionTemplate builds the template that turns a desk/camera
// setup transcript or article into a structured product mention list.
func (sp *SystemPrompts) createProductExtractionTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You are an expert at identifying physical products mentioned in desk setup,
home office and camera gear content.

# Your Task
Read the content and list every concrete, purchasable product the creator
mentions using or recommending.

# Critical Requirements
1. **Real products only**: A mention must name an identifiable product. Generic
   references ("my keyboard", "a lamp") are NOT products unless the brand or
   model is stated elsewhere in the content.
2. **One entry per product**: Deduplicate repeated mentions.
3. **Brand field**: Fill in the brand when stated or unambiguous, otherwise null.
   NEVER guess a brand from the product category.
4. **Category**: Choose the closest of: {categories}
5. **Confidence**: "high" when brand and model are both explicit, "medium" when
   the product is identifiable but partially named, "low" when you are inferring.
6. **Reason**: One short sentence quoting or paraphrasing where the product was
   mentioned.

# Output Rules
- Return ONLY a JSON array of product objects matching the provided schema
- NO explanations, NO markdown code blocks, NO additional text
- If no products are found: return []`),

		schema.UserMessage(`**Content Source**: {source_url}

**Content**:
{content}

Extract every product mention and return ONLY the JSON array.`),
	)
}

// createLinkTriageTemplate builds the template that classifies description
// links as official brand pages vs. everything else.
func (sp *SystemPrompts) createLinkTriageTemplate() prompt.ChatTemplate {
	return prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(`# Your Role
You classify URLs found in a video or article description.

# Your Task
For each URL decide whether it is an official product or brand page (the
manufacturer's own site) as opposed to a marketplace listing, an affiliate
redirect, a social profile or anything else.

# Output Rules
- Return ONLY a JSON array of {{"url": string, "official": boolean}} objects
- ALWAYS keep the input order
- NO explanations, NO additional text`),

		schema.UserMessage(`**URLs**:
{urls}

Classify each URL and return ONLY the JSON array.`),
	)
}
