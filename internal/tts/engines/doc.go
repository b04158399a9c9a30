// Package engines contains the synthesis providers. Each provider turns text
// into 16-bit PCM and reports failures with a synthesis error code.
package engines
