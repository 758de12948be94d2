package oracle

import (
	"strings"

	"github.com/hyperjump/schemalign/pkg/utils"
)

const systemPromptHead = `
<task>
    You must determine whether a target feature logically corresponds to any feature from the given list.
    You will receive the target feature description separately.
    If a match exists, output the exact source feature name.
    If no match exists, output exactly: NAN.
</task>

<rules>
    <rule>Respond with only one token: a feature name from the list OR NAN.</rule>
    <rule>No explanations, no comments, no reasoning.</rule>
    <rule>No punctuation or extra text.</rule>
    <rule>Decision must be based ONLY on the provided target feature description.</rule>
</rules>

<input>
    <source_features>
        `

const systemPromptTail = `
    </source_features>
</input>

<output>
</output>
`

// strictReminder is appended to the user message when a malformed answer is retried.
const strictReminder = `
<reminder>Your previous answer was invalid. Output exactly one feature name copied verbatim from source_features, or exactly NAN. Nothing else.</reminder>
`

// SystemPrompt renders the instructions and the candidate list, one <feature> element per name.
func SystemPrompt(candidates []string) string {
	var b strings.Builder
	b.WriteString(systemPromptHead)
	for _, c := range candidates {
		b.WriteString("<feature>")
		b.WriteString(c)
		b.WriteString("</feature>")
	}
	b.WriteString(systemPromptTail)
	return b.String()
}

// UserMessage describes the target feature. At most maxValues sample values are included
// (all when maxValues <= 0).
func UserMessage(target string, values []string, maxValues int) string {
	return `
<target_feature>
    <name>` + target + `</name>
    <values>` + utils.FormatValues(values, maxValues) + `</values>
</target_feature>
`
}
