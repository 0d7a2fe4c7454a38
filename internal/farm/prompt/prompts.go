// Package prompt renders the per-stage system prompts from embedded
// templates via the Eino prompt component.
package prompt

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed template/vision_prompt.txt
var visionSystemPrompt string

//go:embed template/sensor_prompt.txt
var sensorSystemPrompt string

//go:embed template/weather_prompt.txt
var weatherSystemPrompt string

//go:embed template/finance_prompt.txt
var financeSystemPrompt string

//go:embed template/compliance_prompt.txt
var complianceSystemPrompt string

//go:embed template/eu_ai_act_prompt.txt
var euAIActSystemPrompt string

//go:embed template/master_prompt.txt
var masterSystemPrompt string

var stageTemplates = map[string]string{
	"vision":     visionSystemPrompt,
	"sensor":     sensorSystemPrompt,
	"weather":    weatherSystemPrompt,
	"finance":    financeSystemPrompt,
	"compliance": complianceSystemPrompt,
	"eu_ai_act":  euAIActSystemPrompt,
	"master":     masterSystemPrompt,
}

// Vars are the run-scoped values available to every stage template.
type Vars struct {
	FarmID   string
	Location string
	Date     string
}

// System renders the system prompt for a stage.
func System(ctx context.Context, stage string, vars Vars) (string, error) {
	raw, ok := stageTemplates[stage]
	if !ok {
		return "", fmt.Errorf("no prompt template for stage %q", stage)
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(raw),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"FarmID":   vars.FarmID,
		"Location": vars.Location,
		"Date":     vars.Date,
	})
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", stage, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", stage)
	}
	return msgs[0].Content, nil
}
