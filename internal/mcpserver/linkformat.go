package mcpserver

// LinkFormatContract describes the deep-link format Raido accepts and how
// file references are normalized before resolution.
const LinkFormatContract = `# Raido Deep-Link Format

Raido resolves Obsidian-style deep links of the form:

` + "```" + `
obsidian://open?vault=VAULT_NAME&file=FILE_REFERENCE
` + "```" + `

## Rules

1. **Scheme and action.** The scheme MUST be ` + "`" + `obsidian` + "`" + ` and the action
   MUST be ` + "`" + `open` + "`" + `. Other actions are rejected.
2. **Parameters.** ` + "`" + `vault` + "`" + ` and ` + "`" + `file` + "`" + ` are both required and may
   appear in either order. ` + "`" + `&amp;` + "`" + ` is accepted as a separator for links
   copied out of HTML.
3. **Vault names are case-sensitive.** ` + "`" + `vault=Notes` + "`" + ` and ` + "`" + `vault=notes` + "`" + `
   refer to different mappings.
4. **File references** are vault-relative paths. Percent-encoding is decoded
   (` + "`" + `%20` + "`" + ` becomes a space, doubly-encoded sequences are decoded twice),
   backslashes become forward slashes, and a trailing ` + "`" + `.md` + "`" + ` extension is
   stripped.
5. **Resolution order.** For a reference ` + "`" + `R` + "`" + ` Raido probes, in order:
   ` + "`" + `R.md` + "`" + `, ` + "`" + `R` + "`" + ` verbatim, ` + "`" + `R/index.md` + "`" + `, then case-folded
   variants of ` + "`" + `R.md` + "`" + `. The first existing regular file wins.

## Examples

` + "```" + `
obsidian://open?vault=Work&file=Projects/Roadmap
obsidian://open?vault=Work&file=Meeting%20Notes
obsidian://open?vault=Personal&amp;file=journal/2026-08-23
` + "```" + `

## Tools

- ` + "`" + `classify_link` + "`" + ` reports whether a link's vault is mapped and whether
  the file resolves (` + "`" + `mapped` + "`" + `, ` + "`" + `unmapped` + "`" + `, ` + "`" + `missing` + "`" + `).
- ` + "`" + `fetch_document` + "`" + ` returns the referenced document, preferring the source
  vault and falling back to the local cache when the source is unreachable.
- ` + "`" + `map_vault` + "`" + ` / ` + "`" + `remove_vault` + "`" + ` manage the vault registry;
  ` + "`" + `list_vaults` + "`" + ` shows current mappings.
`
