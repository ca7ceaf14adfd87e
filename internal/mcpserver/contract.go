package mcpserver

// CaptureContract describes what a capture must satisfy before studyai
// submits it for summarization.
const CaptureContract = `# studyai Capture Contract

A capture is a note handed to the summarization backend. Every capture has a
title, a body and a source.

## Sources

| source | tool             | gate                                              |
|--------|------------------|---------------------------------------------------|
| text   | summarize_text   | title and body must not be blank                  |
| text   | summarize_text   | with long=true, body needs at least 300 characters |
| voice  | summarize_text   | title set, transcript at least 300 characters     |
| pdf    | summarize_pdf    | extracted text at least 300 characters (trimmed)  |

Captures that fail a gate are rejected before any network call.

## Summary type

` + "`" + `summary_type` + "`" + ` selects the summary style (default ` + "`" + `detailed` + "`" + `).
Files dropped in the inbox folder may set it in YAML frontmatter:

` + "```" + `markdown
---
title: Lecture 3, cell biology
summary_type: brief
---

Body text of the note.
` + "```" + `

Without a ` + "`" + `title` + "`" + ` key the first H1 heading is used, then the file name.

## PDFs

- Pass an http(s) URL or a base64 data URI (` + "`" + `data:application/pdf;base64,...` + "`" + `).
- The payload must start with the ` + "`" + `%PDF-` + "`" + ` header and be at most 50 MB.
- Internal, loopback and link-local hosts are refused.

## Flashcards

` + "`" + `generate_flashcards` + "`" + ` needs the note content and a set name. It returns the
created set with its cards; list_flashcard_sets shows every set.
`
