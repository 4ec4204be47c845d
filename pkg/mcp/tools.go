package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/magus-names/magus/pkg/models"
)

const defaultHistoryLimit = 20

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("magus_generate_names",
		mcp.WithDescription("Generate pronounceable fantasy names for a culture."),
		mcp.WithString("culture", mcp.Required(), mcp.Description("Culture code or alias, e.g. elvish or elf")),
		mcp.WithString("gender", mcp.Enum("masculine", "feminine", "neutral"), mcp.Description("Gender (optional)")),
		mcp.WithString("length", mcp.Enum("short", "medium", "long"), mcp.Description("Syllable length (optional)")),
		mcp.WithNumber("count", mcp.Min(1), mcp.Description("Number of names (optional)")),
		mcp.WithNumber("min_score", mcp.Min(0), mcp.Max(1), mcp.Description("Minimum pronounceability score (optional)")),
		mcp.WithBoolean("include_pronunciation", mcp.Description("Include hyphenated pronunciations (default true)")),
	), s.handleGenerate)

	s.mcp.AddTool(mcp.NewTool("magus_random_name",
		mcp.WithDescription("Generate one name, from a random culture unless one is given."),
		mcp.WithString("culture", mcp.Description("Culture code or alias (optional)")),
		mcp.WithString("gender", mcp.Enum("masculine", "feminine", "neutral"), mcp.Description("Gender (optional)")),
	), s.handleRandom)

	s.mcp.AddTool(mcp.NewTool("magus_validate_name",
		mcp.WithDescription("Score how pronounceable an arbitrary name is and report the rules it breaks."),
		mcp.WithString("name", mcp.Required(), mcp.Description("The name to score")),
		mcp.WithString("culture", mcp.Description("Culture whose forbidden clusters apply (optional)")),
	), s.handleValidate)

	s.mcp.AddTool(mcp.NewTool("magus_list_cultures",
		mcp.WithDescription("List the available cultures with aliases and example names."),
	), s.handleCultures)

	s.mcp.AddTool(mcp.NewTool("magus_cache_stats",
		mcp.WithDescription("Show generation cache statistics (backend, entries, hits, misses, hit rate)."),
	), s.handleCacheStats)

	if s.history != nil {
		s.mcp.AddTool(mcp.NewTool("magus_history",
			mcp.WithDescription("Show recently generated names and per-culture totals."),
			mcp.WithString("culture", mcp.Description("Filter by culture (optional)")),
			mcp.WithString("since", mcp.Description("Start date in YYYY-MM-DD format (optional)")),
			mcp.WithNumber("limit", mcp.Min(1), mcp.Description("Maximum names to list (optional, default 20)")),
		), s.handleHistory)
	}
}

func (s *Server) handleGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	culture, err := req.RequireString("culture")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	gr := models.GenerationRequest{
		Culture: culture,
		Gender:  models.Gender(req.GetString("gender", "")),
		Length:  models.Length(req.GetString("length", "")),
		Count:   req.GetInt("count", 0),
	}
	args := req.GetArguments()
	if _, ok := args["min_score"]; ok {
		v := req.GetFloat("min_score", 0)
		gr.MinScore = &v
	}
	if _, ok := args["include_pronunciation"]; ok {
		v := req.GetBool("include_pronunciation", true)
		gr.IncludePronunciation = &v
	}

	resp, err := s.svc.GenerateNames(ctx, gr)
	if err != nil {
		return mcp.NewToolResultError("Error generating names: " + err.Error()), nil
	}
	return mcp.NewToolResultText(formatNames(resp)), nil
}

func (s *Server) handleRandom(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resp, err := s.svc.RandomName(ctx, req.GetString("culture", ""), models.Gender(req.GetString("gender", "")))
	if err != nil {
		return mcp.NewToolResultError("Error generating name: " + err.Error()), nil
	}
	return mcp.NewToolResultText(formatNames(resp)), nil
}

func (s *Server) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v, err := s.svc.ValidateName(ctx, name, req.GetString("culture", ""))
	if err != nil {
		return mcp.NewToolResultError("Error validating name: " + err.Error()), nil
	}
	return mcp.NewToolResultText(formatValidation(v)), nil
}

func (s *Server) handleCultures(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatCultures(s.svc.Cultures())), nil
}

func (s *Server) handleCacheStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatCacheStats(s.svc.CacheStats(ctx))), nil
}

func (s *Server) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := models.HistoryFilter{
		Culture: req.GetString("culture", ""),
		Limit:   req.GetInt("limit", defaultHistoryLimit),
	}
	if since := req.GetString("since", ""); since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return mcp.NewToolResultError("Invalid since date (use YYYY-MM-DD): " + err.Error()), nil
		}
		filter.Since = t
	}

	records, err := s.history.History(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError("Error fetching history: " + err.Error()), nil
	}
	summaries, err := s.history.Summary(ctx)
	if err != nil {
		return mcp.NewToolResultError("Error fetching summary: " + err.Error()), nil
	}
	return mcp.NewToolResultText(formatHistory(records) + "\n" + formatSummary(summaries)), nil
}
