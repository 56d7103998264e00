package priority

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/humancompiler/planner/internal/domain"
)

// AIOracle is the AI-backed adapter for C4. It sends a structured
// envelope to a chat model and requires the model to return scores via
// a forced tool call (extract_task_priorities), never free text — this
// mirrors the tool-calling contract the original priority extractor
// used. Any failure along the way (transport, auth, malformed/missing
// tool call) is surfaced as an error; callers are expected to fall back
// to Deterministic rather than fail the run (spec §4.3).
type AIOracle struct {
	client openai.Client
	model  string
}

// NewAIOracle builds an AIOracle. apiKey empty means "read from
// OPENAI_API_KEY", consistent with the SDK's own default.
func NewAIOracle(apiKey, model string) *AIOracle {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &AIOracle{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

const priorityToolName = "extract_task_priorities"

func priorityExtractionTool() openai.ChatCompletionToolParam {
	return openai.ChatCompletionToolParam{
		Function: openai.FunctionDefinitionParam{
			Name:        priorityToolName,
			Description: openai.String("Record a priority score from 0.0 to 10.0 for every task ID supplied"),
			Parameters: openai.FunctionParameters{
				"type": "object",
				"properties": map[string]any{
					"task_priorities": map[string]any{
						"type":        "object",
						"description": "Map of task ID to priority score in [0, 10]",
						"additionalProperties": map[string]any{
							"type": "number",
						},
					},
				},
				"required": []string{"task_priorities"},
			},
		},
	}
}

// Priorities sends the envelope and an optional free-text userPrompt
// (spec §4.3: "optional free-text user_prompt") and parses the forced
// tool call's arguments. It never falls back internally — the caller
// (the bulkhead wrapper) decides what to do on error, per spec's "on
// any error, fall back deterministically".
func (o *AIOracle) Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error) {
	envelope, err := buildEnvelope(c, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("priority: building envelope: %w", err)
	}

	tool := priorityExtractionTool()
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: o.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(prioritySystemPrompt),
			openai.UserMessage(envelope),
		},
		Tools: []openai.ChatCompletionToolParam{tool},
		ToolChoice: openai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &openai.ChatCompletionNamedToolChoiceParam{
				Function: openai.ChatCompletionNamedToolChoiceFunctionParam{Name: priorityToolName},
			},
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("priority: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("priority: empty choices in response")
	}

	calls := resp.Choices[0].Message.ToolCalls
	if len(calls) == 0 {
		return nil, fmt.Errorf("priority: model returned no tool call")
	}
	call := calls[0]
	if call.Function.Name != priorityToolName {
		return nil, fmt.Errorf("priority: unexpected tool call %q", call.Function.Name)
	}

	var args struct {
		TaskPriorities map[string]float64 `json:"task_priorities"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return nil, fmt.Errorf("priority: parsing tool arguments: %w", err)
	}
	if args.TaskPriorities == nil {
		return nil, fmt.Errorf("priority: tool call missing task_priorities")
	}

	out := make(map[string]float64, len(args.TaskPriorities))
	for id, v := range args.TaskPriorities {
		out[id] = clamp(v, 0, 10)
	}
	return out, nil
}

const prioritySystemPrompt = `You help rank a user's tasks for a weekly plan. ` +
	`You will receive projects, goals, tasks and project allocation weights as JSON, ` +
	`plus an optional free-text note from the user. ` +
	`Score every task ID from 0.0 (lowest) to 10.0 (highest) and return it only via the ` +
	priorityToolName + ` tool. Never respond with plain text.`

type envelopePayload struct {
	WeekStart   string                     `json:"week_start"`
	Projects    []*domain.Project          `json:"projects"`
	Goals       []*domain.Goal             `json:"goals"`
	Tasks       []*domain.SchedulerTask    `json:"tasks"`
	Allocations []domain.ProjectAllocation `json:"allocations"`
	UserPrompt  string                     `json:"user_prompt,omitempty"`
}

func buildEnvelope(c Context, userPrompt string) (string, error) {
	payload := envelopePayload{
		WeekStart:   c.WeekStart,
		Projects:    c.Projects,
		Goals:       c.Goals,
		Tasks:       c.Tasks,
		Allocations: c.Allocations,
		UserPrompt:  userPrompt,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TimeoutOracle wraps another Oracle with a hard deadline, so a slow
// chat backend can never stall a planning run past its budget.
type TimeoutOracle struct {
	Inner   Oracle
	Timeout time.Duration
}

func (t TimeoutOracle) Priorities(ctx context.Context, c Context, userPrompt string) (map[string]float64, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		scores map[string]float64
		err    error
	}
	ch := make(chan result, 1)
	go func() {
		scores, err := t.Inner.Priorities(cctx, c, userPrompt)
		ch <- result{scores, err}
	}()

	select {
	case r := <-ch:
		return r.scores, r.err
	case <-cctx.Done():
		log.Printf("priority: AI oracle timed out after %s", timeout)
		return nil, cctx.Err()
	}
}
