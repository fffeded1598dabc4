package summarize

import "strings"

// splitMarker divides a level template into its static, cacheable system
// instructions and its dynamic user-content template.
const splitMarker = "<!-- SPLIT -->"

const dailyTemplate = `You write a terse, factual daily engineering recap from a list of GitHub
activities for one person. Group related items, call out notable PRs and
issues by title, and never invent detail not present in the input. Use
Markdown with a single H2 heading for the date.
` + splitMarker + `
Activities for {{DATE}}:

{{ACTIVITIES}}

Stats: {{STATS}}
`

const weeklyTemplate = `You write a weekly engineering recap from seven daily Markdown recaps for
one person. Summarise the week's themes, notable work, and review load;
do not simply re-list every daily item. Use Markdown with a single H2
heading naming the ISO week.
` + splitMarker + `
Daily recaps for week {{WEEK}}:

{{CONTENT}}
`

const monthlyTemplate = `You write a monthly engineering recap from the weekly recaps that overlap
the month, for one person. Identify the month's major themes and
highlights at a higher level than the weeklies. Use Markdown with a single
H2 heading naming the month.
` + splitMarker + `
Weekly recaps for {{MONTH}}:

{{CONTENT}}
`

const yearlyTemplate = `You write a yearly engineering recap from the twelve monthly recaps for
one person, written as a reflective year-in-review. Use Markdown with a
single H2 heading naming the year.
` + splitMarker + `
Monthly recaps for {{YEAR}}:

{{CONTENT}}
`

const queryTemplate = `You answer a question about one person's past engineering activity using
only the recap context provided below. If the context does not contain
enough information to answer, say so plainly instead of guessing.
` + splitMarker + `
Context:

{{CONTENT}}

Question: {{QUESTION}}
`

// splitTemplate separates tpl into its static system prompt and its dynamic
// user-content template.
func splitTemplate(tpl string) (system, userTemplate string) {
	idx := strings.Index(tpl, splitMarker)
	if idx < 0 {
		return "", strings.TrimSpace(tpl)
	}
	return strings.TrimSpace(tpl[:idx]), strings.TrimSpace(tpl[idx+len(splitMarker):])
}
