package app

import (
	"fmt"
	"strings"
)

// contentMode is the prompt-template variant for a generation request.
// The requested content type is matched against the reserved values exactly
// once, here; everything downstream dispatches on the mode.
type contentMode int

const (
	modeStandard contentMode = iota
	modeSystemPrompt
	modeImagePrompt
	modeCode
)

func resolveContentMode(contentType string) contentMode {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "llm system prompt", "ai prompt":
		return modeSystemPrompt
	case "midjourney image prompt":
		return modeImagePrompt
	case "code", "code snippet":
		return modeCode
	default:
		return modeStandard
	}
}

// composePrompt renders the system and user prompts for a generation
// request. The retrieved context is always framed as optional: the model is
// told to ignore it when it is not topically relevant.
func composePrompt(req GenerateRequest, contextText string) (systemPrompt, userPrompt string) {
	mode := resolveContentMode(req.ContentType)

	var b strings.Builder
	switch mode {
	case modeSystemPrompt:
		systemPrompt = "You are an expert prompt engineer. You write production-quality system prompts for large language models."
		fmt.Fprintf(&b, "Write a complete, ready-to-use LLM system prompt for an assistant specialized in: %q.\n", req.Topic)
		b.WriteString("The system prompt must define the assistant's role, capabilities, constraints, and output style.\n")
	case modeImagePrompt:
		systemPrompt = "You are an expert at writing Midjourney image prompts. You produce vivid, concrete visual descriptions."
		fmt.Fprintf(&b, "Write a numbered list of 5 distinct Midjourney image prompts for the topic: %q.\n", req.Topic)
		b.WriteString("Each prompt describes one image: subject, setting, lighting, style, composition.\n")
	case modeCode:
		systemPrompt = "You are an expert software engineer. You write clear, idiomatic, working code with concise explanations."
		fmt.Fprintf(&b, "Write a code example about the topic: %q.\n", req.Topic)
		writeStyleGuidelines(&b, req)
	default:
		systemPrompt = "You are an expert content creator and social media manager."
		fmt.Fprintf(&b, "Write a %s about the topic: %q.\n", req.ContentType, req.Topic)
		writeStyleGuidelines(&b, req)
	}

	if strings.TrimSpace(contextText) != "" {
		b.WriteString("\nContext from the user's knowledge base:\n")
		b.WriteString(contextText)
		b.WriteString("\n\nUse the context only where it is relevant to the topic; ignore it entirely if it is not.\n")
	}
	b.WriteString("\nReturn only the requested output, with no preamble and no closing remarks.")
	return systemPrompt, b.String()
}

func writeStyleGuidelines(b *strings.Builder, req GenerateRequest) {
	if strings.TrimSpace(req.Tone) != "" {
		fmt.Fprintf(b, "Tone: %s.\n", req.Tone)
		// The model decides whether the tone names a style or a persona.
		b.WriteString("If the tone value reads like a persona or a writing sample rather than a simple adjective, mimic that persona's voice; the persona takes precedence over generic tone rules.\n")
	}
	if strings.TrimSpace(req.TargetAudience) != "" {
		fmt.Fprintf(b, "Target audience: %s.\n", req.TargetAudience)
	}
	if strings.TrimSpace(req.Language) != "" {
		fmt.Fprintf(b, "Write in %s.\n", req.Language)
	}
}

// composeEditorPrompt renders the single-shot rewrite prompt.
func composeEditorPrompt(req RegenerateRequest) (systemPrompt, userPrompt string) {
	systemPrompt = "You are a precise text editor. Return only the rewritten text: no preamble, no explanations, no surrounding quotes."
	var b strings.Builder
	fmt.Fprintf(&b, "Rewrite the selected text according to this instruction: %s\n\n", req.Instruction)
	fmt.Fprintf(&b, "Selected text:\n%s\n", req.SelectedText)
	if strings.TrimSpace(req.Context) != "" {
		fmt.Fprintf(&b, "\nSurrounding context (for reference only, do not rewrite it):\n%s\n", req.Context)
	}
	return systemPrompt, b.String()
}

// composeImageQueryPrompt asks the model to distill a topic into a short
// visual search phrase for the stock-photo API.
func composeImageQueryPrompt(topic string) (systemPrompt, userPrompt string) {
	systemPrompt = "You optimize search queries for a stock photo site."
	userPrompt = fmt.Sprintf(
		"Convert the following topic into a single, highly effective visual search query of 2-3 words. Focus on the main visual subject (concrete nouns), avoid abstract concepts, and return only the keywords.\n\nTopic: %s",
		topic,
	)
	return systemPrompt, userPrompt
}
