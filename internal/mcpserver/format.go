package mcpserver

// NoteDocumentFormat describes the canonical note document layout that
// LLM consumers should follow when creating or updating notes.
const NoteDocumentFormat = `# Othala Note Document Format

Every note stored in Othala is a single JSON document.

## Structure

` + "```" + `json
{
  "id": "2FX9K3QRT",
  "name": "Human-readable note name",
  "paragraphs": [
    {
      "id": "paragraph-uuid",
      "title": "Optional paragraph title",
      "text": "%sql select * from events",
      "user": "author",
      "status": "FINISHED",
      "dateCreated": "2025-01-20T09:30:00Z",
      "dateUpdated": "2025-01-20T09:31:12Z",
      "config": {},
      "settings": {}
    }
  ],
  "config": {},
  "info": {}
}
` + "```" + `

## Rules

1. **The id is server-assigned.** Omit it when creating; never invent one.
2. **The name field is required.** It is the primary display name everywhere.
3. **Paragraphs are ordered.** The array order is the execution and display order.
4. **Paragraph status** is one of UNKNOWN, READY, PENDING, RUNNING, FINISHED,
   ERROR, ABORT. Notes read back from storage never report PENDING or RUNNING:
   execution state does not survive persistence and is reset to ABORT.
5. **Timestamps** are RFC 3339 strings. Documents written by older systems may
   carry legacy formats (` + "`" + `Jan 2, 2006 3:04:05 PM` + "`" + ` or epoch
   milliseconds); they are accepted on read and normalized on the next write.
6. **Unknown fields are preserved.** Any extra top-level or paragraph fields
   pass through reads and writes untouched, so enrich rather than strip.
7. **Encoding** is UTF-8.
`
