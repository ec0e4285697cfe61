package semantic

import "fmt"

const systemPrompt = `You locate form controls for a browser test harness.

You will receive:
1. A page map with the URL, title, and the interactive elements on the page. Each element has a "selector" plus whatever the page exposes: type, role, label, text, placeholder, name, id.
2. A description of the one element the test needs.

Pick the single element that best matches the description. Prefer the element's label, placeholder and accessible role over its position on the page. When two elements share a placeholder or label, use the description's wording (first, second, confirmation, repeat) to choose.

Output a JSON object:
{"selector": "<selector copied exactly from the page map>", "reason": "<short explanation>"}

If nothing on the page matches, output:
{"selector": "", "reason": "<why nothing matches>"}

Use only selectors that appear in the page map. Respond ONLY with the JSON object, no explanation or markdown.`

func buildUserPrompt(pageMapJSON string, req Request) string {
	return fmt.Sprintf("Page map:\n%s\n\nLogical field: %s\nDescription: %s", pageMapJSON, req.Field, req.Description)
}
