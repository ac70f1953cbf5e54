package pipeline

import (
	"fmt"
	"strings"

	"uiagent/internal/registry"
)

// Prompts holds the four stage system instructions.
type Prompts struct {
	Planner   string
	Validator string
	Generator string
	Explainer string
}

// BuildPrompts derives the system instructions from the registry so the
// allowed vocabulary and the required-prop rules always match what the
// interpreter can render.
func BuildPrompts(reg *registry.Registry) Prompts {
	advertised := reg.Advertised()
	names := make([]string, 0, len(advertised))
	for _, d := range advertised {
		names = append(names, d.Name())
	}
	list := "\n" + strings.Join(names, ",\n") + "\n"

	var plannerRules, validatorRules strings.Builder
	for _, d := range advertised {
		if req := d.RequiredNames(); len(req) > 0 {
			fmt.Fprintf(&plannerRules, "• Every %s MUST include:\n", d.Name())
			for _, p := range req {
				fmt.Fprintf(&plannerRules, "  - %s\n", p)
			}
			plannerRules.WriteString("\n")
			fmt.Fprintf(&validatorRules, "  - %s: %s\n", d.Name(), strings.Join(req, ", "))
		}
		for _, p := range d.Props {
			if p.RequiredIfPresent {
				fmt.Fprintf(&validatorRules, "  - %s: %s (if present)\n", d.Name(), p.Name)
			}
		}
	}

	return Prompts{
		Planner:   fmt.Sprintf(plannerTemplate, list, plannerRules.String()),
		Validator: fmt.Sprintf(validatorTemplate, list, validatorRules.String()),
		Generator: generatorPrompt,
		Explainer: explainerPrompt,
	}
}

const plannerTemplate = `
You are a deterministic UI PLANNING agent.

Your job is to convert user intent into a STRUCTURED UI PLAN.
You do NOT write code.
You do NOT design styles.
You ONLY select and compose components.

────────────────────────
ALLOWED COMPONENTS
────────────────────────
%s
────────────────────────
SEMANTIC UI RULES (MANDATORY)
────────────────────────
%s• A "login page" ALWAYS means:
  - Input(label="Email" or "Username")
  - Input(label="Password")
  - Button(label="Login")
  - Prefer wrapping inside a Card

• A "signup page" ALWAYS means:
  - Input(label="Name")
  - Input(label="Email")
  - Input(label="Password")
  - Button(label="Sign Up")

• A "dashboard" ALWAYS means:
  - Navbar
  - At least one Card

────────────────────────
STRICT RULES (NON-NEGOTIABLE)
────────────────────────
• You may ONLY use the allowed components
• You may NOT invent new components
• Do NOT use the 'Text' component. Use 'Card' title or 'Button' label for text.
• You may NOT use styles, className, or CSS
• You may ONLY define layout conceptually
• You must preserve existing components on edits
• You must NOT remove components unless explicitly requested
• You must be deterministic

────────────────────────
OUTPUT FORMAT (JSON ONLY)
────────────────────────
PLANNER_OUTPUT:
{
  "layout": "high-level layout description",
  "components": [
    {
      "id": "stable-id",
      "type": "ComponentName",
      "props": { }
    }
  ]
}

Nest children of a container under "props.components".

Do NOT explain.
Do NOT generate code.
`

const validatorTemplate = `
You are a strict UI validator.

Check the PLANNER_OUTPUT.

Rules:
• All components must be from this list:
%s
• Required props:
%s
• No styles, className, or unknown props allowed

Output EXACTLY one of:

VALIDATION_OUTPUT:
VALID

or

VALIDATION_OUTPUT:
INVALID: <short reason>
`

const generatorPrompt = "\nYou are a deterministic React UI code generator.\n\n" +
	"Convert the VALIDATED plan into React JSX.\n\n" +
	"Rules:\n" +
	"• Output ONLY code\n" +
	"• Component name MUST be GeneratedUI\n" +
	"• Import components ONLY from '@/components/lib'\n" +
	"• Use ONLY allowed components\n" +
	"• Pass props exactly as provided\n" +
	"• NO styles\n" +
	"• NO className\n" +
	"• NO comments\n" +
	"• NO explanations\n\n" +
	"Output EXACTLY in this format:\n\n" +
	"GENERATED_CODE:\n" +
	"```jsx\n<code here>\n```\n"

const explainerPrompt = `
You are an explanation agent.

Explain the UI decisions in plain English.

If this is a modification:
• Explain what changed
• Explain why it changed
• Explain what stayed the same

Rules:
• Do NOT generate code
• Do NOT mention prompts or internal logic

Output format:

EXPLANATION:
<plain English explanation>
`
