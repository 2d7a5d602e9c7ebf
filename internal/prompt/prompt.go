package prompt

import (
	"fmt"

	"github.com/tmc/langchaingo/prompts"
)

// scriptTemplate is rendered with Go template syntax. Values are inserted as-is.
const scriptTemplate = `You are writing the script for a spoken-word podcast episode.

Topic: {{.topic}}
Style: {{.style}}
Target length: about {{.duration}} minutes of speech.

Structure the script as follows:
1. Hook: open with a vivid line or question about "{{.topic}}" that makes listeners want to keep going.
2. Body: cover the topic in two or three short sections, with a natural spoken transition between each section.
3. Recap: close with a brief recap of the key points and exactly one call-to-action for the listener.

Tone: {{.style}}. Keep the delivery {{.style}} throughout and talk directly to the listener.
Write only the words to be spoken, as plain text. No stage directions, speaker labels, headings or markdown.
Size the script so it reads aloud in roughly {{.duration}} minutes.`

var scriptPrompt = prompts.NewPromptTemplate(scriptTemplate, []string{"topic", "style", "duration"})

// Build renders the instruction text sent to the text-generation service.
// topic and style appear verbatim in the output.
func Build(topic, style string, durationMinutes int) (string, error) {
	text, err := scriptPrompt.Format(map[string]any{
		"topic":    topic,
		"style":    style,
		"duration": durationMinutes,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render script prompt: %w", err)
	}
	return text, nil
}
