package translator

import (
	"fmt"
	"regexp"
	"strings"

	"tgfb-relay/internal/caption"
)

const promptTemplate = `Translate the following post into Malay.
Write it as a casual, friendly Facebook caption in one paragraph. No heading, no explanation, just the final result.
Do not use slang or shouting. Keep it natural, chill, and neutral.
No need to say "Terjemahan:" or any extra labels.
Do not include any @mentions, links, or references to the original source or channel.
If the post starts with "JUST IN:" (with or without bold markup such as **JUST IN:**), start the caption with "TERKINI:" instead.

'%s'
`

var (
	justInRe = regexp.MustCompile(`(?i)^(?:\*\*|__)?\s*JUST IN\s*:\s*(?:\*\*|__)?\s*`)
	labelRe  = regexp.MustCompile(`(?i)^(?:terjemahan|translation|kapsyen|caption)\s*:\s*`)
)

// BuildPrompt wraps cleaned source text in the fixed caption instruction.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}

// PostProcess turns a raw model completion into a publishable caption.
func PostProcess(out string) string {
	s := strings.TrimSpace(out)
	s = strings.Trim(s, `'"`)
	s = labelRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = caption.Clean(s)
	s = justInRe.ReplaceAllString(s, "TERKINI: ")
	return strings.TrimSpace(s)
}
