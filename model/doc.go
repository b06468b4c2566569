// Package model defines the provider-agnostic abstractions for interacting
// with language models.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition)
//   - Carry code execution, reasoning and inline image parts for providers
//     that support them
//   - Facilitate scripted models for tests (package modeltest)
//
// Providers (OpenAI, Anthropic, Gemini) implement the Model interface in
// sub-packages so the runtime remains decoupled from vendor SDKs.
package model
