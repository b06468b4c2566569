package agent

// Provider supplies dynamic instruction text from session state.
type Provider interface {
	Instruction(state map[string]any) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(state map[string]any) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(state map[string]any) (string, error) { return f(state) }

// Instruction represents either a static template or a dynamic provider.
// Static text is rendered as a template against session state, so
// {{.report_name}} style references resolve per session.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(state map[string]any) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(state map[string]any) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(state)
	}

	return renderTemplate(i.text, state)
}
