// Package prompts contains the LLM prompt text used by the agent and
// the document editor.
//
// Prompt text is Go code rather than config files because it is program
// logic: it benefits from compile-time embedding and can be validated
// by tests. User-facing configuration lives in config.yaml; this
// package holds the instructions we send to models.
//
// Convention: each prompt category gets its own file (system.go,
// editor.go) with exported constants, or an exported function when the
// prompt needs dynamic parts interpolated.
package prompts
