package engine

// LLM prompt templates. Data only, no logic.

// InsightSystemPrompt fixes the persona for insight extraction.
const InsightSystemPrompt = `You are an expert content curator. You read video transcripts and pull out the passages worth sharing. You always answer with valid JSON and nothing else.`

// InsightPrompt asks for 3-4 titled excerpts in a fixed JSON shape.
// Args: transcript text.
const InsightPrompt = `Extract 3-4 key insights from the following video transcript.

For each insight:
1. Create a compelling, descriptive title
2. Extract the exact content verbatim (at least 200-300 words each)
3. Focus on the most valuable, insightful, or interesting parts

Respond with valid JSON only (no markdown, no ` + "`" + `json` + "`" + ` block), in exactly this shape:
{
  "insights": [
    {"title": "The title of the insight", "content": "The actual insight content of at least one page"}
  ]
}

Rules:
- "insights" must be a JSON array with 3 or 4 objects
- every object has a non-empty "title" and a non-empty "content" string
- escape double quotes and newlines inside strings
- do not add any other keys or commentary

Transcript:
%s`
