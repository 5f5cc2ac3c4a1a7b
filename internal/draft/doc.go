// Package draft generates patent application drafts with a local Ollama model.
//
// Prompts come from one of three templates (utility, software, medical) and ask
// the model for the standard application sections. Generation goes through
// langchaingo; model listing and pulling use the Ollama REST API directly.
//
//	g := draft.NewGenerator("http://localhost:11434",
//	    draft.WithCache(draft.NewMemoryCache(100, 24*time.Hour)))
//	res, err := g.Generate(ctx, draft.Request{
//	    Description: "A handheld bottle opener with a spring-loaded lever ...",
//	    UseCache:    true,
//	})
//
// ParseSections splits a generated draft back into named sections.
package draft
