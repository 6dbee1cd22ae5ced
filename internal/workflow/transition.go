package workflow

import "fmt"

// Action is a user-triggered operation on a session.
type Action string

const (
	ActionStart       Action = "start"
	ActionContinue    Action = "continue"
	ActionGenerate    Action = "generate"
	ActionRegenerate  Action = "regenerate"
	ActionRevise      Action = "revise"
	ActionAsk         Action = "ask"
	ActionExecuteTask Action = "execute_task"
	ActionReview      Action = "review"
	ActionExport      Action = "export"
)

// transitions maps (stage, action) to the stage the session is in after the
// action. Navigate and Reset are valid from every stage and are not listed.
var transitions = map[Stage]map[Action]Stage{
	StageSetup: {
		ActionStart:    StagePlanning,
		ActionContinue: StagePlanning,
	},
	StagePlanning: {
		ActionContinue:   StageUnderstanding,
		ActionGenerate:   StagePlanning,
		ActionRegenerate: StagePlanning,
		ActionRevise:     StagePlanning,
	},
	StageUnderstanding: {
		ActionContinue:   StageGuidance,
		ActionGenerate:   StageUnderstanding,
		ActionRegenerate: StageUnderstanding,
		ActionAsk:        StageUnderstanding,
	},
	StageGuidance: {
		ActionContinue:   StageExecution,
		ActionGenerate:   StageGuidance,
		ActionRegenerate: StageGuidance,
		ActionRevise:     StageGuidance,
	},
	StageExecution: {
		ActionContinue:    StageReporting,
		ActionGenerate:    StageExecution,
		ActionExecuteTask: StageExecution,
		ActionReview:      StageExecution,
	},
	StageReporting: {
		ActionGenerate:   StageReporting,
		ActionRegenerate: StageReporting,
		ActionRevise:     StageReporting,
		ActionExport:     StageReporting,
	},
}

// next returns the target stage of action from stage, or ErrGuard when the
// action is not available there.
func next(stage Stage, action Action) (Stage, error) {
	target, ok := transitions[stage][action]
	if !ok {
		return stage, fmt.Errorf("%w: %s is not available in %s", ErrGuard, action, stage)
	}
	return target, nil
}

// Allowed reports whether action is available from stage.
func Allowed(stage Stage, action Action) bool {
	_, ok := transitions[stage][action]
	return ok
}

// Actions returns the actions available from stage in a stable order.
func Actions(stage Stage) []Action {
	order := []Action{
		ActionStart, ActionContinue, ActionGenerate, ActionRegenerate, ActionRevise,
		ActionAsk, ActionExecuteTask, ActionReview, ActionExport,
	}
	var out []Action
	for _, a := range order {
		if Allowed(stage, a) {
			out = append(out, a)
		}
	}
	return out
}
