// Package mcpserver exposes skill activation as Model Context Protocol tools
// so that coding assistants can request the guidance for their workspace.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/version"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const serverName = "skillkit"

// Activator runs activation requests
type Activator interface {
	Activate(ctx context.Context, req activation.Request) (*activation.Response, error)
	Diagnose(ctx context.Context, req activation.Request) (*activation.Diagnosis, error)
}

// RegistryProvider hands out the current registry snapshot
type RegistryProvider interface {
	Current() *skills.Registry
}

// Tools holds the MCP tool handlers
type Tools struct {
	engine   Activator
	registry RegistryProvider
}

// NewTools creates the tool handlers
func NewTools(engine Activator, registry RegistryProvider) *Tools {
	return &Tools{engine: engine, registry: registry}
}

// New creates an MCP server with every skillkit tool registered.
func New(engine Activator, registry RegistryProvider) (*server.MCPServer, error) {
	t := NewTools(engine, registry)

	s := server.NewMCPServer(
		serverName,
		version.Get().Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	requestSchema, err := json.Marshal(activation.GenerateSchema[activation.Request]())
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request schema")
	}

	s.AddTool(mcp.NewToolWithRawSchema("activate_skills",
		"Select the skills that apply to the files being edited and the prompt, and return their guidance as one markdown document.",
		requestSchema), t.HandleActivate)
	s.AddTool(mcp.NewToolWithRawSchema("diagnose_skills",
		"Explain how every registered skill scored for a request, including skills that did not activate.",
		requestSchema), t.HandleDiagnose)
	s.AddTool(mcp.NewTool("list_skills",
		mcp.WithDescription("List the registered skills with their activation metadata."),
	), t.HandleList)
	s.AddTool(mcp.NewTool("get_skill",
		mcp.WithDescription("Return the full guidance of one skill."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Skill id or display name")),
	), t.HandleGet)

	return s, nil
}

// Serve speaks the MCP stdio protocol on in and out until the client closes
// in or ctx is cancelled. Cancellation is a clean shutdown.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	log := logger.G(ctx)
	log.Info("serving skills over MCP stdio")

	errLog := log.WriterLevel(logrus.WarnLevel)
	defer errLog.Close()

	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(stdlog.New(errLog, "", 0))

	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) {
		log.Info("MCP stdio server stopped")
		return nil
	}
	return err
}

func arguments(request mcp.CallToolRequest) map[string]any {
	args, _ := any(request.Params.Arguments).(map[string]any)
	if args == nil {
		return map[string]any{}
	}
	return args
}

func decodeRequest(request mcp.CallToolRequest) (activation.Request, error) {
	var req activation.Request
	raw, err := json.Marshal(arguments(request))
	if err != nil {
		return req, errors.Wrap(err, "failed to encode arguments")
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, errors.Wrap(err, "invalid arguments")
	}
	return req, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode result")
	}
	return mcp.NewToolResultText(string(out)), nil
}

// activationSummary is the metadata returned next to the composed document.
type activationSummary struct {
	RequestID         string   `json:"requestId"`
	RegistryVersion   uint64   `json:"registryVersion"`
	SkillIDs          []string `json:"skillIds"`
	Truncated         bool     `json:"truncated"`
	Omitted           []string `json:"omitted,omitempty"`
	UnknownReferences []string `json:"unknownReferences,omitempty"`
}

// HandleActivate handles the activate_skills tool
func (t *Tools) HandleActivate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decodeRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	resp, err := t.engine.Activate(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	document := resp.Document
	if document == "" {
		document = "No skills apply to this request."
	}

	summary, err := json.Marshal(activationSummary{
		RequestID:         resp.RequestID,
		RegistryVersion:   resp.RegistryVersion,
		SkillIDs:          resp.SkillIDs,
		Truncated:         resp.Truncated,
		Omitted:           resp.Omitted,
		UnknownReferences: resp.UnknownReferences,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode activation summary")
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(document),
			mcp.NewTextContent(string(summary)),
		},
	}, nil
}

// HandleDiagnose handles the diagnose_skills tool
func (t *Tools) HandleDiagnose(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	req, err := decodeRequest(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	diag, err := t.engine.Diagnose(ctx, req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(diag)
}

type skillListing struct {
	ID          string          `json:"id"`
	DisplayName string          `json:"displayName"`
	Description string          `json:"description,omitempty"`
	Category    skills.Category `json:"category"`
	Keywords    []string        `json:"keywords,omitempty"`
	Patterns    []string        `json:"filePatterns,omitempty"`
}

// HandleList handles the list_skills tool
func (t *Tools) HandleList(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	reg := t.registry.Current()

	listing := make([]skillListing, 0, reg.Len())
	for _, s := range reg.ByCategory() {
		listing = append(listing, skillListing{
			ID:          s.ID,
			DisplayName: s.DisplayName,
			Description: s.Description,
			Category:    s.Category,
			Keywords:    s.Keywords,
			Patterns:    s.FilePatterns,
		})
	}

	return jsonResult(map[string]any{
		"registryVersion": reg.Version(),
		"skills":          listing,
	})
}

// HandleGet handles the get_skill tool
func (t *Tools) HandleGet(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, _ := arguments(request)["id"].(string)
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	skill, ok := t.registry.Current().LookupRef(id)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("skill %q not found", id)), nil
	}

	return mcp.NewToolResultText(activation.Section(skill)), nil
}
