package mcpserver

// ArticleFormatContract describes the article format LLM consumers should
// follow when creating or updating articles.
const ArticleFormatContract = `# Folio Article Format Contract

An article is a markdown source plus three fields kept in the site index.

## Fields

- **name**: the file name of the published page under ` + "`" + `articles/` + "`" + `.
  Letters, digits, ` + "`" + `.` + "`" + `, ` + "`" + `_` + "`" + ` and ` + "`" + `-` + "`" + ` only. It cannot change once saved.
- **title**: REQUIRED. Shown in the index and on the page.
- **isoPubtime**: ISO-8601 publish time, e.g. ` + "`" + `2025-01-15T09:30:00.000Z` + "`" + `. Defaults to now.
- **tags**: optional list of short lowercase tags.

## Source

- Standard markdown with GitHub extensions (tables, task lists, strikethrough, autolinks).
- The brief shown in the index is the text before a line containing ` + "`" + `<!--more-->` + "`" + `,
  or the first paragraph when there is no such line.
- Raw HTML is passed through unchanged.

## Publishing

Edits stay local until ` + "`" + `save_changes` + "`" + `. A save renders every changed article,
rewrites the index and publishes them as one commit. If the branch moved since the
last load the save fails; call ` + "`" + `reload_articles` + "`" + ` (which discards unsaved edits)
and apply the edits again.

## Example

` + "```" + `markdown
# Weekly notes

A short summary that becomes the brief.

<!--more-->

The rest of the article.
` + "```" + `
`
