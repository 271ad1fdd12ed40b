package llm

const keywordPrompt = `You maintain a catalog of political categories used to match voter statements.

Category name: %s
Category type: %s
Description: %s
Current keywords: %s
Additional context: %s

Suggest up to %d new keywords or short phrases that voters commonly use when talking about this category.
Do not repeat current keywords. Prefer everyday language over jargon.

Respond ONLY with a JSON array of strings. No markdown, no explanation. Example:
["carbon tax","clean energy"]`

const draftPrompt = `You maintain a catalog of political categories used to match voter statements.
Draft a new category from the description below.

- name: short title case name
- type: one of "issue", "policy", "candidate_attribute", "attribute"
- description: one or two plain sentences
- keywords: 5 to 12 words or short phrases voters would use
- political_spectrum: one of "progressive", "conservative", "bipartisan", "polarized", or "" if unclear

Respond ONLY with a JSON object. No markdown, no explanation. Example:
{"name":"Climate Action","type":"issue","description":"Policies to reduce emissions.","keywords":["climate","emissions"],"political_spectrum":"progressive"}

Description:
%s`
