// Package agent contains declarative agent definitions and the report team
// roster driven by the runner package.
//
// An Agent couples a model with instructions, tools and an optional set of
// sub-agents. Agents never execute themselves: the runner resolves the active
// agent, builds the model request from its definition and follows
// transfer_to_agent actions across the hierarchy.
//
// The report team is a three agent hierarchy:
//   - report_agent: root orchestrator, delegates only
//   - data_tools: receives the per-turn report tools (artifacts and blocks)
//   - code_executor: runs Python analysis and renders charts
package agent
