package prompts

import (
	"github.com/cloudwego/eino/components/prompt"
)

// SystemPrompts contains all the prompt templates organized by use case
type SystemPrompts struct {
	// Product mention extraction from transcripts and article bodies
	ProductExtraction prompt.ChatTemplate

	// Description-text triage (which links are official brand pages)
	LinkTriage prompt.ChatTemplate
}

// NewSystemPrompts creates and initializes all prompt templates
func NewSystemPrompts() *SystemPrompts {
	sp := &SystemPrompts{}
	sp.ProductExtraction = sp.createProductExtractionTemplate()
	sp.LinkTriage = sp.createLinkTriageTemplate()
	return sp
}
