package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jingkaihe/skillkit/pkg/activation"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTools(t *testing.T) *Tools {
	t.Helper()

	reg, err := skills.Load(context.Background(), []skills.Record{
		{Spec: skills.Spec{
			ID:           "cap-service",
			DisplayName:  "CAP Service",
			Category:     "service",
			FilePatterns: []string{"srv/**/*.cds"},
			Keywords:     []string{"cds"},
			Body:         "Model services in CDS.",
		}},
		{Spec: skills.Spec{
			ID:          "commit-style",
			DisplayName: "Commit Style",
			Category:    "general",
			Keywords:    []string{"commit"},
			Body:        "Write imperative subjects.",
		}},
	}, skills.WithVersion(7))
	require.NoError(t, err)

	provider := activation.StaticRegistry(reg)
	engine, err := activation.NewEngine(provider)
	require.NoError(t, err)

	return NewTools(engine, provider)
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func textOf(t *testing.T, result *mcp.CallToolResult, index int) string {
	t.Helper()
	require.Greater(t, len(result.Content), index)
	content, ok := result.Content[index].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return content.Text
}

func TestNew_RegistersTools(t *testing.T) {
	tools := testTools(t)
	s, err := New(tools.engine, tools.registry)
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestHandleActivate(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleActivate(context.Background(), callRequest(map[string]any{
		"activeFiles": []any{"srv/catalog/service.cds"},
		"promptText":  "please commit this",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	document := textOf(t, result, 0)
	assert.Contains(t, document, "## CAP Service")
	assert.Contains(t, document, "## Commit Style")

	var summary activationSummary
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 1)), &summary))
	assert.Equal(t, []string{"cap-service", "commit-style"}, summary.SkillIDs)
	assert.Equal(t, uint64(7), summary.RegistryVersion)
	assert.NotEmpty(t, summary.RequestID)
	assert.False(t, summary.Truncated)
}

func TestHandleActivate_NoMatch(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleActivate(context.Background(), callRequest(map[string]any{
		"activeFiles": []any{"README.md"},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "No skills apply to this request.", textOf(t, result, 0))
}

func TestHandleActivate_InvalidArguments(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleActivate(context.Background(), callRequest(map[string]any{
		"activeFiles": "not-a-list",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleActivate_NegativeBudget(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleActivate(context.Background(), callRequest(map[string]any{
		"budget": -1,
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleDiagnose(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleDiagnose(context.Background(), callRequest(map[string]any{
		"promptText": "@commit-style and @missing",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	var diag activation.Diagnosis
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &diag))
	require.Len(t, diag.Matches, 2)
	assert.Equal(t, "commit-style", diag.Matches[0].SkillID)
	assert.True(t, diag.Matches[0].Explicit)
	assert.Equal(t, []string{"missing"}, diag.UnknownReferences)
}

func TestHandleList(t *testing.T) {
	tools := testTools(t)

	result, err := tools.HandleList(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var listing struct {
		RegistryVersion uint64         `json:"registryVersion"`
		Skills          []skillListing `json:"skills"`
	}
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result, 0)), &listing))
	assert.Equal(t, uint64(7), listing.RegistryVersion)
	require.Len(t, listing.Skills, 2)
	assert.Equal(t, "cap-service", listing.Skills[0].ID)
	assert.Equal(t, skills.CategoryService, listing.Skills[0].Category)
}

func TestHandleGet(t *testing.T) {
	tools := testTools(t)

	tests := []struct {
		name     string
		args     map[string]any
		isError  bool
		contains string
	}{
		{name: "by id", args: map[string]any{"id": "cap-service"}, contains: "Model services in CDS."},
		{name: "by display name", args: map[string]any{"id": "commit style"}, contains: "<!-- skill: commit-style -->"},
		{name: "unknown", args: map[string]any{"id": "nope"}, isError: true, contains: `skill "nope" not found`},
		{name: "missing id", args: map[string]any{}, isError: true, contains: "id is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tools.HandleGet(context.Background(), callRequest(tt.args))
			require.NoError(t, err)
			assert.Equal(t, tt.isError, result.IsError)
			assert.Contains(t, textOf(t, result, 0), tt.contains)
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	tools := testTools(t)
	s, err := New(tools.engine, tools.registry)
	require.NoError(t, err)

	in, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, s, in, io.Discard)
	}()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop after cancellation")
	}
}

func TestServe_AnswersUntilInputCloses(t *testing.T) {
	tools := testTools(t)
	s, err := New(tools.engine, tools.registry)
	require.NoError(t, err)

	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), s, in, &out))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["id"])
	assert.Contains(t, resp, "result")
}
