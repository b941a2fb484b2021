package adk

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-1.5-pro"

type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiProvider(ctx context.Context, apiKey string, modelName string, opts ...option.ClientOption) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: no API key configured")
	}
	client, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = defaultGeminiModel
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(GetSystemPrompt())}}

	return &GeminiProvider{client: client, model: model}, nil
}

func (g *GeminiProvider) ListModels(ctx context.Context) ([]string, error) {
	iter := g.client.ListModels(ctx)
	var names []string
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		if strings.Contains(m.Name, "gemini") {
			names = append(names, strings.TrimPrefix(m.Name, "models/"))
		}
	}
	return names, nil
}

func (g *GeminiProvider) GenerateResponse(ctx context.Context, history []Message, tools []Tool) (string, *ToolCall, error) {
	if len(history) == 0 {
		return "", nil, errors.New("empty history")
	}

	g.model.Tools = nil
	if decls := functionDeclarations(tools); len(decls) > 0 {
		g.model.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	cs := toContents(history)
	session := g.model.StartChat()
	session.History = cs[:len(cs)-1]

	resp, err := session.SendMessage(ctx, cs[len(cs)-1].Parts...)
	if err != nil {
		return "", nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", nil, fmt.Errorf("no response candidates")
	}

	var responseText string
	var toolCall *ToolCall
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.FunctionCall:
			if toolCall == nil {
				toolCall = &ToolCall{ToolName: p.Name, Args: p.Args}
			}
		case genai.Text:
			responseText += string(p)
		}
	}
	if toolCall == nil && responseText == "" {
		return "", nil, fmt.Errorf("no response")
	}
	return responseText, toolCall, nil
}

func (g *GeminiProvider) Close() {
	g.client.Close()
}

// toContents maps the history to chat contents. Tool output goes back as a user turn
// so the model sees it.
func toContents(history []Message) []*genai.Content {
	cs := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		role := "user"
		if msg.Role == "model" {
			role = "model"
		}
		cs = append(cs, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(msg.Content)}})
	}
	return cs
}

func functionDeclarations(tools []Tool) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schemaFrom(t.Schema()),
		})
	}
	return decls
}

// schemaFrom converts a JSON schema map into a genai schema. Free-form objects have
// no representation in function declarations and are declared as JSON strings.
func schemaFrom(m map[string]interface{}) *genai.Schema {
	if m == nil {
		return &genai.Schema{Type: genai.TypeObject, Properties: map[string]*genai.Schema{}}
	}
	s := &genai.Schema{}
	s.Description, _ = m["description"].(string)

	switch m["type"] {
	case "string":
		s.Type = genai.TypeString
	case "integer":
		s.Type = genai.TypeInteger
	case "number":
		s.Type = genai.TypeNumber
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
		if items, ok := m["items"].(map[string]interface{}); ok {
			s.Items = schemaFrom(items)
		}
	default:
		props, _ := m["properties"].(map[string]interface{})
		if len(props) == 0 && m["type"] == "object" && m["free_form"] == true {
			s.Type = genai.TypeString
			s.Description = strings.TrimSpace(s.Description + " (JSON object encoded as a string)")
			return s
		}
		s.Type = genai.TypeObject
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, p := range props {
			if pm, ok := p.(map[string]interface{}); ok {
				s.Properties[name] = schemaFrom(pm)
			}
		}
	}

	s.Enum = stringList(m["enum"])
	s.Required = stringList(m["required"])
	return s
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, x := range t {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
