package mcpserver

// NoteModelGuide tells LLM consumers what a note is and how search behaves.
const NoteModelGuide = `# notesight note model

A note has an integer ` + "`id`" + ` (assigned on creation), a required plain-text
` + "`title`" + `, a required plain-text ` + "`content`" + `, and ` + "`created_at`" + ` /
` + "`updated_at`" + ` timestamps maintained by the server.

## Search

- ` + "`search_notes`" + ` matches the query against title and content with equal weight.
- Results come back in relevance order, most relevant first.
- A blank query matches nothing.
- ` + "`limit`" + ` defaults to 5 and is capped by the server.
- A note is searchable as soon as ` + "`create_note`" + ` returns.

## Writing

- ` + "`create_note`" + ` needs both title and content; neither may be blank.
- ` + "`delete_note`" + ` removes the note and its search document.
- Notes are plain text; no frontmatter or links are interpreted.

## Insights

` + "`get_insights`" + ` summarises all notes with a hosted language model. When the
model is unreachable it returns a fixed apology instead of failing.
`
