package adk

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/workspace-audit/pkg/logging"
)

// DefaultMaxSteps bounds the tool calls one Chat turn may make.
const DefaultMaxSteps = 40

var ErrTooManySteps = errors.New("agent exceeded tool call limit")

// Tool represents an executable action for the agent
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args map[string]interface{}, progress func(string)) (string, error)
	Schema() map[string]interface{} // JSON schema for arguments
}

// ToolCall represents a request from the LLM to execute a tool
type ToolCall struct {
	ToolName string
	Args     map[string]interface{}
}

// Message represents a chat message
type Message struct {
	Role    string // "user", "model", "function"
	Content string
}

// LLMProvider defines the interface for different AI models
type LLMProvider interface {
	GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error)
	ListModels(ctx context.Context) ([]string, error)
}

// Agent is the core ADK agent
type Agent struct {
	llm      LLMProvider
	log      *logging.Logger
	tools    map[string]Tool
	order    []string
	history  []Message
	MaxSteps int
}

// NewAgent creates a new agent with the given LLM provider
func NewAgent(llm LLMProvider, log *logging.Logger) *Agent {
	if log == nil {
		log = logging.NewTestLog()
	}
	return &Agent{
		llm:      llm,
		log:      log,
		tools:    make(map[string]Tool),
		MaxSteps: DefaultMaxSteps,
	}
}

// RegisterTool adds a tool to the agent's registry. Tools are offered to the model in
// registration order.
func (a *Agent) RegisterTool(t Tool) {
	if _, ok := a.tools[t.Name()]; !ok {
		a.order = append(a.order, t.Name())
	}
	a.tools[t.Name()] = t
}

// Tools returns the registered tools in registration order.
func (a *Agent) Tools() []Tool {
	out := make([]Tool, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.tools[name])
	}
	return out
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []Message {
	return append([]Message(nil), a.history...)
}

// Chat sends a message to the agent and returns the response
func (a *Agent) Chat(ctx context.Context, input string, progress func(string)) (string, error) {
	a.history = append(a.history, Message{Role: "user", Content: input})

	for step := 0; step < a.MaxSteps; step++ {
		respText, toolCall, err := a.llm.GenerateResponse(ctx, a.history, a.Tools())
		if err != nil {
			return "", err
		}

		if toolCall == nil {
			a.history = append(a.history, Message{Role: "model", Content: respText})
			return respText, nil
		}

		a.log.WithField("tool", toolCall.ToolName).Debugf("executing with args: %v", toolCall.Args)
		a.history = append(a.history, Message{
			Role:    "model",
			Content: fmt.Sprintf("I will call tool %s with args %v", toolCall.ToolName, toolCall.Args),
		})

		tool, exists := a.tools[toolCall.ToolName]
		if !exists {
			a.history = append(a.history, Message{Role: "function", Content: fmt.Sprintf("Error: Tool %s not found", toolCall.ToolName)})
			continue
		}

		result, err := tool.Execute(ctx, toolCall.Args, progress)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			result = fmt.Sprintf("Error executing tool: %v", err)
		}

		a.history = append(a.history, Message{
			Role:    "function",
			Content: fmt.Sprintf("Tool %s returned: %s", toolCall.ToolName, result),
		})
	}
	return "", fmt.Errorf("%w (%d)", ErrTooManySteps, a.MaxSteps)
}
