package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"

	"cbrowser/internal/browser/browsertest"
	"cbrowser/internal/heal"
	mcpserver "cbrowser/internal/mcp"
	"cbrowser/internal/store"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func TestMain(m *testing.M) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	})))
	os.Exit(m.Run())
}

// renamedSubmit is a page whose "Submit" button is now "Submit Order".
func renamedSubmit(_ int, d *browsertest.Driver) {
	d.Fail("Submit", -1, "element not found: Submit").
		SetEval(heal.ElementsScript, []heal.Element{{Kind: "button", Tag: "button", Text: "Submit Order"}}).
		SetEval(heal.ContextScript, map[string]any{"url": "https://shop.test/checkout", "title": "Checkout"})
}

func newTestServer(t *testing.T, l *browsertest.Launcher) (*mcpserver.Server, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	srv := mcpserver.NewServer(l, st, heal.Options{MaxRetries: 2, RetryDelay: -1})
	return srv, st
}

func connectInMemory(t *testing.T, ctx context.Context, srv *mcpserver.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	serverSession, err := srv.MCPServer.Connect(ctx, t1, nil)
	if err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	t.Cleanup(func() { serverSession.Close() })

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callToolE(ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) (map[string]any, error) {
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}
	var text string
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			text = tc.Text
			break
		}
	}
	if res.IsError {
		return nil, errors.New(text)
	}
	result := make(map[string]any)
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, err
	}
	return result, nil
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any) map[string]any {
	t.Helper()
	out, err := callToolE(ctx, session, name, args)
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return out
}

func TestServer_ToolDiscovery(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.Launcher{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	want := map[string]bool{
		"classify_failure": false,
		"suggest_repairs":  false,
		"heal_test":        false,
		"list_runs":        false,
	}
	for _, tool := range tools.Tools {
		if _, ok := want[tool.Name]; ok {
			want[tool.Name] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("tool %q not found in ListTools", name)
		}
	}
}

func TestServer_SuggestRepairsSchemaDescribesVisibleText(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.Launcher{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	tools, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	for _, tool := range tools.Tools {
		if tool.Name != "suggest_repairs" {
			continue
		}
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			t.Fatalf("marshal schema: %v", err)
		}
		schema := string(raw)
		if !strings.Contains(schema, "buttons, links, role=button") || strings.Contains(schema, "headings") {
			t.Errorf("visible_text description does not match the page snapshot:\n%s", schema)
		}
		return
	}
	t.Fatal("suggest_repairs not listed")
}

func TestServer_ClassifyFailure(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.Launcher{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	cases := map[string]string{
		"Element not found: #buy":           "selector_not_found",
		"timed out waiting for text":        "timeout",
		"net::ERR_NAME_NOT_RESOLVED":        "navigation_failed",
		"something odd happened":            "unknown",
		"element is not clickable at point": "element_not_interactable",
	}
	for msg, want := range cases {
		out := callTool(t, ctx, session, "classify_failure", map[string]any{"error": msg})
		if out["failure_kind"] != want {
			t.Errorf("classify %q = %v, want %s", msg, out["failure_kind"], want)
		}
	}
}

func TestServer_SuggestRepairs(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.Launcher{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "suggest_repairs", map[string]any{
		"instruction":  `click "Submit"`,
		"error":        "element not found: Submit",
		"alternatives": []string{`button: "Submit Order"`, `link: "Submit feedback"`},
	})
	if out["failure_kind"] != "selector_not_found" {
		t.Errorf("failure_kind = %v", out["failure_kind"])
	}
	sugs, _ := out["suggestions"].([]any)
	if len(sugs) != 2 {
		t.Fatalf("expected 2 suggestions, got %v", out["suggestions"])
	}
	top := sugs[0].(map[string]any)
	if top["type"] != "selector_update" || top["suggested_instruction"] != "click Submit Order" {
		t.Errorf("top suggestion = %v", top)
	}
}

func TestServer_SuggestRepairs_RequiresInstruction(t *testing.T) {
	srv, _ := newTestServer(t, &browsertest.Launcher{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	_, err := callToolE(ctx, session, "suggest_repairs", map[string]any{"instruction": " ", "error": "x"})
	if err == nil || !strings.Contains(err.Error(), "instruction is required") {
		t.Errorf("expected instruction error, got %v", err)
	}
}

func TestServer_HealTest_RecordsHistory(t *testing.T) {
	l := &browsertest.Launcher{Setup: renamedSubmit}
	srv, st := newTestServer(t, l)
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	out := callTool(t, ctx, session, "heal_test", map[string]any{
		"name":       "checkout",
		"steps":      []string{"go to https://shop.test", "", `click "Submit"`},
		"auto_apply": true,
		"verify":     false,
	})

	result, _ := out["result"].(map[string]any)
	if result["outcome"] != string(heal.CompletedWithFailures) {
		t.Errorf("outcome = %v", result["outcome"])
	}
	if result["failed_steps"] != float64(1) || result["repaired_steps"] != float64(1) {
		t.Errorf("counters = %v/%v", result["failed_steps"], result["repaired_steps"])
	}
	wantExport := "# checkout (repaired: 1/1 failed steps)\ngo to https://shop.test\nclick Submit Order\n"
	if out["repaired"] != wantExport {
		t.Errorf("repaired =\n%v\nwant\n%s", out["repaired"], wantExport)
	}
	if len(l.Sessions()) != 1 {
		t.Errorf("verify=false should launch one session, got %d", len(l.Sessions()))
	}

	runID, _ := out["run_id"].(float64)
	runs, err := st.ListRuns(0)
	if err != nil || len(runs) != 1 || runs[0].ID != int64(runID) || runs[0].Suite != "checkout" {
		t.Fatalf("history = %v, %v (run_id %v)", runs, err, runID)
	}
	repairs, _ := st.ListRepairs(runs[0].ID)
	if len(repairs) != 1 || !repairs[0].Applied || repairs[0].Suggested != "click Submit Order" {
		t.Errorf("repairs = %+v", repairs)
	}

	listed := callTool(t, ctx, session, "list_runs", map[string]any{})
	list, _ := listed["runs"].([]any)
	if len(list) != 1 || list[0].(map[string]any)["suite"] != "checkout" {
		t.Errorf("list_runs = %v", listed)
	}
}

func TestServer_HealTest_Errors(t *testing.T) {
	ctx := context.Background()

	srv, _ := newTestServer(t, &browsertest.Launcher{})
	session := connectInMemory(t, ctx, srv)
	if _, err := callToolE(ctx, session, "heal_test", map[string]any{"name": "empty", "steps": []string{" "}}); err == nil {
		t.Error("expected error for a test without steps")
	}

	down, _ := newTestServer(t, &browsertest.Launcher{Err: errors.New("chrome missing")})
	session = connectInMemory(t, ctx, down)
	_, err := callToolE(ctx, session, "heal_test", map[string]any{"name": "t", "steps": []string{"go to https://x.test"}})
	if err == nil || !strings.Contains(err.Error(), "chrome missing") {
		t.Errorf("expected launch error, got %v", err)
	}
}

func TestServer_ListRuns_NoStore(t *testing.T) {
	srv := mcpserver.NewServer(&browsertest.Launcher{}, nil, heal.Options{})
	ctx := context.Background()
	session := connectInMemory(t, ctx, srv)

	if _, err := callToolE(ctx, session, "list_runs", map[string]any{}); err == nil {
		t.Error("expected error when history is disabled")
	}
}
