package agent

import "github.com/ashureev/analyst-labs/internal/domain"

var defaultInstructions = map[domain.Persona]string{
	domain.PersonaManager: "You are an AI Data Analysis Manager. Your role is to create structured analytical plans, " +
		"synthesize insights, and provide clear guidance for data analysis projects. Be concise, professional, and focus " +
		"on creating actionable plans that address the business goals.",
	domain.PersonaAnalyst: "You are an AI Data Analyst. Your role is to examine data, perform calculations, " +
		"and provide objective observations about patterns and trends. Be precise, technical, and focus on " +
		"extracting meaningful insights from the data.",
	domain.PersonaAssociate: "You are an AI Senior Data Associate. Your role is to review analysis plans, " +
		"guide execution, define hypotheses, and formulate clear storylines for data exploration. Be strategic, " +
		"detail-oriented, and focus on connecting analysis to business objectives.",
	domain.PersonaGeneral: "You are an AI assistant helping with data analysis.",
}

// Instructions maps each persona to its system instruction.
type Instructions map[domain.Persona]string

// NewInstructions returns the stock persona instructions with non-empty
// overrides applied.
func NewInstructions(overrides map[domain.Persona]string) Instructions {
	out := make(Instructions, len(defaultInstructions))
	for p, text := range defaultInstructions {
		out[p] = text
	}
	for p, text := range overrides {
		if text != "" {
			out[p] = text
		}
	}
	return out
}

// For returns the instruction for a persona, falling back to the general one.
func (i Instructions) For(p domain.Persona) string {
	if text, ok := i[p]; ok {
		return text
	}
	return i[domain.PersonaGeneral]
}
