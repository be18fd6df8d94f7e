// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package consensus

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// classifyPrompt asks for a strict JSON verdict on whether an image is a
// logo or otherwise carries no meaningful information.
const classifyPrompt = `You are an image classifier. Decide whether the given image is a logo, is purely decorative, or contains only a few words of text with no important information.

Respond with a JSON object and nothing else:
{"is_logo": "Yes"}
or
{"is_logo": "No"}

Rules:
- Answer "Yes" for logos, branding, icons, decorations and images with only a few words.
- Answer "No" for images that carry information: text passages, tables, graphs, charts, diagrams or flowcharts.
- Use exactly the key "is_logo" and exactly the value "Yes" or "No".
- Do not add explanations, comments or any text outside the JSON object.`

// extractPrompt drives one of the three independent extractions. Sections
// are emitted only for content types that are visibly present.
const extractPrompt = `You are a precise visual content analyzer. Identify, transcribe and structure the information in the image. The image may contain text, tables, graphs and/or flowcharts.

# Responsibilities
1. Inspect the whole image and determine which element types are present.
2. Transcribe exactly what is shown. Never assume, infer or invent content.
3. Emit only the sections for element types that are actually present.
4. Keep the formatting of each section consistent.

# Guidelines
- Detect the language of the image and keep the transcription in that language.
- Copy numbers, units, labels and text exactly as displayed.
- Keep relationships between table cells and between graph series intact.
- Keep the direction and labels of flowchart connections.

# Output format

` + "```markdown" + `
# Image Analysis Results

### Detected Elements
- Elements: [only the elements found: Text, Table, Graph, Flowchart]
- Language: [primary language]

### Text Content
{only if text is present}
[verbatim transcription, preserving line breaks and emphasis]

### Table Content
{only if a table is present}
##### Table: [title if shown]
| Header 1 | Header 2 | ... |
|----------|----------|-----|
| Value    | Value    | ... |

### Graph Analysis
{only if a graph is present}
##### Graph: [title if shown]
- **Type**: [line/bar/pie/scatter/...]
- **X-axis**: [label] (units if shown)
- **Y-axis**: [label] (units if shown)
- **Legend**: [entries if shown]
- **Data Points**:
  - [(x1, y1)]
  - [(x2, y2)]

### Flowchart Structure
{only if a flowchart is present}
##### Flowchart: [title if shown]
- **Components**:
  1. [Node 1]: [exact text]
  2. [Node 2]: [exact text]
- **Connections**:
  - [Node 1] → [Node 2]: [label if any]
` + "```" + `

# Quality rules
1. Include a section only when its element type is present in the image.
2. Do not reconstruct, complete or "improve" unclear content.
3. Mark unreadable parts with [Unclear] or [Partially Visible] and say what is affected (e.g. "bottom right corner obscured").
4. Do not change number formats or units.
5. Do not translate anything.

Output only what you can read with certainty.`

var judgePromptTmpl = template.Must(template.New("judge").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`You are a QA evaluator. Below are {{len .Candidates}} responses to the same image extraction task. Select the one that is the most complete and accurate description of the content of the image.

Responses:
{{range $i, $c := .Candidates}}
Response {{inc $i}}:
{{$c}}
{{end}}
Reply with exactly one digit: {{.Choices}}. Do not add any other text, explanation or formatting.`))

var translatePromptTmpl = template.Must(template.New("translate").Parse(`You are a translator. Translate the text below into {{.Language}}. Keep the Markdown structure, numbers and units unchanged. Reply with the translated text only, without comments, explanations or surrounding formatting.

Text to translate:
{{.Text}}`))

// renderJudgePrompt lists the candidates with 1-based labels.
func renderJudgePrompt(candidates []string) (string, error) {
	choices := make([]string, len(candidates))
	for i := range candidates {
		choices[i] = fmt.Sprint(i + 1)
	}
	var buf bytes.Buffer
	err := judgePromptTmpl.Execute(&buf, struct {
		Candidates []string
		Choices    string
	}{Candidates: candidates, Choices: strings.Join(choices, ", ")})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderTranslatePrompt(language, text string) (string, error) {
	var buf bytes.Buffer
	if err := translatePromptTmpl.Execute(&buf, struct{ Language, Text string }{language, text}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
