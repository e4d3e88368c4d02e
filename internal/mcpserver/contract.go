package mcpserver

// LogFormatContract describes how LLM agents should write daily-log
// entries so that the chunker, scorer, and promotion pipeline can make
// sense of them later.
const LogFormatContract = `# Mimir Daily Log Contract

Every log_event call appends one section to today's dated log
(memory/YYYY-MM-DD.md). Write entries so they stay useful to the
promotion and indexing pipeline.

## Structure

` + "```" + `markdown
## Short descriptive title

One or more paragraphs describing what happened.
` + "```" + `

## Rules

1. **One event per call.** Each call becomes one ` + "`" + `##` + "`" + ` section; do not
   pack unrelated events into a single entry.
2. **Title** is a short noun phrase (e.g. ` + "`" + `Deploy pipeline fixed` + "`" + `).
   When omitted, the current HH:MM time is used.
3. **Body** should be self-contained prose of at least a few
   sentences. Sections shorter than 50 characters are ignored by the
   promotion scan.
4. **Say what changed.** Decisions, fixes, blockers, lessons, and
   milestones are what gets promoted to long-term memory; plain
   acknowledgments score as routine and are dropped.
5. **Use [[wikilinks]]** to reference documents or sections; the
   relationship graph picks them up on the next re-index.
6. **Plain Markdown only**, UTF-8, no HTML.
`
