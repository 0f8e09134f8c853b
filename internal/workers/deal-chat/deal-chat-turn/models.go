package dealchatturn

import (
	"deal-assistant/internal/common/validation"
	"deal-assistant/internal/dealchat"
)

type Input struct {
	Message   string          `json:"message"`
	DealState *dealchat.Draft `json:"dealState"`
}

type Output struct {
	AIMessage string          `json:"aiMessage"`
	DealState *dealchat.Draft `json:"dealState"`
	DealID    *int64          `json:"dealId,omitempty"`
	Step      string          `json:"step"`
}

// ToVariables renders the output as process variables.
func (o *Output) ToVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"aiMessage": o.AIMessage,
		"dealState": o.DealState,
		"step":      o.Step,
	}
	if o.DealID != nil {
		vars["dealId"] = *o.DealID
	}
	return vars
}

func GetInputSchema() validation.JSONSchema {
	return validation.JSONSchema{
		Type: validation.Type("object"),
		Properties: map[string]validation.Property{
			"message": {
				Type:        validation.Type("string"),
				Description: "User's chat message for this turn",
				MaxLength:   validation.Int(4000),
			},
			"dealState": {
				Type:        validation.Type("object", "null"),
				Description: "Draft returned by the previous turn",
			},
		},
		Required:             []string{"message"},
		AdditionalProperties: true,
	}
}
