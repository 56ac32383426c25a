package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cbrowser/internal/browser"
	"cbrowser/internal/heal"
	"cbrowser/internal/logging"
	"cbrowser/internal/step"
	"cbrowser/internal/store"
	"cbrowser/internal/suite"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

// DefaultListLimit caps list_runs when no limit is given.
const DefaultListLimit = 20

// Server wraps the MCP SDK server and exposes the repair engine as tools.
type Server struct {
	MCPServer *sdkmcp.Server
	Launcher  browser.Launcher
	// Store records heal_test runs. Nil disables history.
	Store store.Store
	// Options are the defaults for heal_test; per-call inputs override them.
	Options heal.Options

	// mu serializes heal_test: one browser run at a time.
	mu sync.Mutex
}

// NewServer creates an MCP server whose heal_test tool acquires sessions
// from launcher and records runs in st.
func NewServer(launcher browser.Launcher, st store.Store, opts heal.Options) *Server {
	s := &Server{Launcher: launcher, Store: st, Options: opts}
	s.MCPServer = sdkmcp.NewServer(
		&sdkmcp.Implementation{Name: "cbrowser", Version: "dev"},
		nil,
	)
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "classify_failure",
		Description: "Classify a step error message into a failure kind.",
	}, s.handleClassifyFailure)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "suggest_repairs",
		Description: "Generate ranked repair suggestions for a failed instruction without opening a browser.",
	}, s.handleSuggestRepairs)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "heal_test",
		Description: "Run a natural-language test in the browser, analyze failing steps and return the repaired test.",
	}, s.handleHealTest)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        "list_runs",
		Description: "List recent heal runs from the history store, newest first.",
	}, s.handleListRuns)
}

// --- Tool input/output types ---

type classifyFailureInput struct {
	Error       string `json:"error" jsonschema:"error message reported by the failed step"`
	Instruction string `json:"instruction,omitempty" jsonschema:"instruction of the failed step"`
}

type classifyFailureOutput struct {
	FailureKind heal.FailureKind `json:"failure_kind"`
}

type suggestRepairsInput struct {
	Instruction  string   `json:"instruction" jsonschema:"instruction of the failed step"`
	Error        string   `json:"error" jsonschema:"error message reported by the failed step"`
	Alternatives []string `json:"alternatives,omitempty" jsonschema:"alternative targets found on the page, as returned by the heal analysis, e.g. button: \"Submit Order\""`
	URL          string   `json:"url,omitempty" jsonschema:"page URL at the time of failure"`
	Title        string   `json:"title,omitempty" jsonschema:"page title at the time of failure"`
	VisibleText  []string `json:"visible_text,omitempty" jsonschema:"text of the clickable elements on the page (buttons, links, role=button)"`
}

type suggestRepairsOutput struct {
	FailureKind heal.FailureKind        `json:"failure_kind"`
	Step        step.Step               `json:"step"`
	Suggestions []heal.RepairSuggestion `json:"suggestions"`
}

type healTestInput struct {
	Name       string   `json:"name" jsonschema:"test name"`
	Steps      []string `json:"steps" jsonschema:"one natural-language instruction per entry"`
	AutoApply  *bool    `json:"auto_apply,omitempty" jsonschema:"substitute the top suggestion for each failed step"`
	Verify     *bool    `json:"verify,omitempty" jsonschema:"re-run the repaired test in a fresh session"`
	MaxRetries int      `json:"max_retries,omitempty" jsonschema:"attempts per step (default from server options)"`
}

type healTestOutput struct {
	RunID    int64                  `json:"run_id,omitempty"`
	Result   *heal.TestRepairResult `json:"result"`
	Repaired string                 `json:"repaired"`
}

type listRunsInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of runs to return (default 20)"`
}

type runSummary struct {
	ID                int64   `json:"id"`
	Suite             string  `json:"suite"`
	StartedAt         string  `json:"started_at"`
	DurationMS        int64   `json:"duration_ms"`
	Tests             int     `json:"tests"`
	TestsWithFailures int     `json:"tests_with_failures"`
	TestsRepaired     int     `json:"tests_repaired"`
	SuccessRate       float64 `json:"success_rate"`
}

type listRunsOutput struct {
	Runs []runSummary `json:"runs"`
}

// --- Tool handlers ---

func (s *Server) handleClassifyFailure(_ context.Context, _ *sdkmcp.CallToolRequest, input classifyFailureInput) (*sdkmcp.CallToolResult, classifyFailureOutput, error) {
	st := step.DefaultParser.Parse(input.Instruction)
	return nil, classifyFailureOutput{FailureKind: heal.Classify(input.Error, st)}, nil
}

func (s *Server) handleSuggestRepairs(_ context.Context, _ *sdkmcp.CallToolRequest, input suggestRepairsInput) (*sdkmcp.CallToolResult, suggestRepairsOutput, error) {
	if strings.TrimSpace(input.Instruction) == "" {
		return nil, suggestRepairsOutput{}, errors.New("instruction is required")
	}
	st := step.DefaultParser.Parse(input.Instruction)
	kind := heal.Classify(input.Error, st)
	pc := heal.NewPageContext(input.URL, input.Title, input.VisibleText)
	return nil, suggestRepairsOutput{
		FailureKind: kind,
		Step:        st,
		Suggestions: heal.GenerateSuggestions(st, input.Error, kind, input.Alternatives, pc),
	}, nil
}

func (s *Server) handleHealTest(ctx context.Context, _ *sdkmcp.CallToolRequest, input healTestInput) (*sdkmcp.CallToolResult, healTestOutput, error) {
	logger := logging.New("mcp")
	tc, err := buildTestCase(input.Name, input.Steps)
	if err != nil {
		return nil, healTestOutput{}, err
	}
	if s.Launcher == nil {
		return nil, healTestOutput{}, errors.New("no browser launcher configured")
	}

	opts := s.Options
	if input.AutoApply != nil {
		opts.AutoApply = *input.AutoApply
	}
	if input.Verify != nil {
		opts.Verify = *input.Verify
	}
	if input.MaxRetries > 0 {
		opts.MaxRetries = input.MaxRetries
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := suite.Run(ctx, heal.NewRepairer(s.Launcher, opts), []step.TestCase{tc})
	if err != nil {
		return nil, healTestOutput{}, fmt.Errorf("heal_test: %w", err)
	}
	res.Name = tc.Name
	tr := res.TestResults[0]

	out := healTestOutput{Result: tr, Repaired: suite.ExportTest(tr)}
	if s.Store != nil {
		id, err := store.RecordSuite(s.Store, res)
		if err != nil {
			logger.Warn("history not recorded", "test", tc.Name, "error", err)
		} else {
			out.RunID = id
		}
	}
	logger.Info("heal_test finished", "test", tc.Name, "outcome", tr.Outcome, "run_id", out.RunID)
	return nil, out, nil
}

func (s *Server) handleListRuns(_ context.Context, _ *sdkmcp.CallToolRequest, input listRunsInput) (*sdkmcp.CallToolResult, listRunsOutput, error) {
	if s.Store == nil {
		return nil, listRunsOutput{}, errors.New("history store is disabled")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs, err := s.Store.ListRuns(limit)
	if err != nil {
		return nil, listRunsOutput{}, fmt.Errorf("list_runs: %w", err)
	}
	out := listRunsOutput{Runs: make([]runSummary, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, runSummary{
			ID:                r.ID,
			Suite:             r.Suite,
			StartedAt:         r.StartedAt.UTC().Format(time.RFC3339),
			DurationMS:        r.Duration.Milliseconds(),
			Tests:             r.Tests,
			TestsWithFailures: r.TestsWithFailures,
			TestsRepaired:     r.TestsRepaired,
			SuccessRate:       r.SuccessRate,
		})
	}
	return nil, out, nil
}

func buildTestCase(name string, lines []string) (step.TestCase, error) {
	if strings.TrimSpace(name) == "" {
		name = "mcp"
	}
	tc := step.TestCase{Name: name}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		tc.Steps = append(tc.Steps, step.DefaultParser.Parse(l))
	}
	if len(tc.Steps) == 0 {
		return tc, fmt.Errorf("test %q has no steps", name)
	}
	return tc, nil
}
