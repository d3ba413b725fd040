// Package compose assembles briefing scripts from resolved content. The
// deterministic assembler targets a word budget derived from the requested
// length; when a language model is configured the assembled outline is sent
// through it for polish, with the deterministic text as the fallback.
package compose
