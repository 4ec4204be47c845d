// Package service drives generation requests end to end: cache lookup,
// bounded generation with filtering and dedup, cache write-back and
// fire-and-forget history recording.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/magus-names/magus/pkg/cache"
	"github.com/magus-names/magus/pkg/config"
	"github.com/magus-names/magus/pkg/culture"
	"github.com/magus-names/magus/pkg/generator"
	"github.com/magus-names/magus/pkg/metrics"
	"github.com/magus-names/magus/pkg/models"
	"github.com/magus-names/magus/pkg/phonetics"
)

const recordTimeout = 5 * time.Second

// Catalog resolves and lists culture templates.
type Catalog interface {
	Lookup(code string) (*models.CultureTemplate, bool)
	All() []*models.CultureTemplate
}

// Generator produces one scored candidate per call.
type Generator interface {
	Generate(culture string, gender models.Gender, length models.Length) (models.Candidate, error)
}

// Analyzer scores a name and reports the rules that fired.
type Analyzer interface {
	Analyze(name, culture string) (float64, []models.Penalty)
}

// Cache is the result cache used by the service.
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) bool
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration)
	InvalidateCulture(ctx context.Context, code string) (int, error)
	Ping(ctx context.Context) bool
	Stats(ctx context.Context) models.CacheStats
}

// Recorder persists history. Calls happen off the request path.
type Recorder interface {
	RecordNames(ctx context.Context, names []models.NameRecord) error
	RecordRequest(ctx context.Context, rec models.RequestRecord) error
}

// Metrics observes finished generation requests.
type Metrics interface {
	Generation(culture, outcome string, names int, elapsed time.Duration)
}

// Options holds the optional collaborators of a NameService.
type Options struct {
	Config   config.GenerationConfig
	Recorder Recorder
	Metrics  Metrics
	Source   generator.Source
	Logger   *zap.Logger
}

// NameService is the single entry point the transports call.
type NameService struct {
	catalog  Catalog
	engine   Generator
	analyzer Analyzer
	cache    Cache
	recorder Recorder
	metrics  Metrics
	cfg      config.GenerationConfig
	src      generator.Source
	logger   *zap.Logger
	validate *validator.Validate
	flight   singleflight.Group

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

// New creates a NameService. A nil cache disables caching.
func New(catalog Catalog, engine Generator, analyzer Analyzer, c Cache, opts Options) *NameService {
	if c == nil {
		c = cache.NewWithBackend(cache.NewNoopBackend(), 0, opts.Logger, nil)
	}
	if opts.Source == nil {
		opts.Source = generator.DefaultSource()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	cfg := opts.Config
	def := config.Default().Generation
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = def.MaxCount
	}
	if cfg.DefaultCount <= 0 {
		cfg.DefaultCount = def.DefaultCount
	}
	if cfg.AttemptsPerName <= 0 {
		cfg.AttemptsPerName = def.AttemptsPerName
	}
	return &NameService{
		catalog:  catalog,
		engine:   engine,
		analyzer: analyzer,
		cache:    c,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		cfg:      cfg,
		src:      opts.Source,
		logger:   opts.Logger,
		validate: validator.New(),
	}
}

// GenerateNames serves a generation request. Cache failures are invisible to
// the caller; a short result is a valid outcome.
func (s *NameService) GenerateNames(ctx context.Context, req models.GenerationRequest) (*models.GenerationResponse, error) {
	start := time.Now()

	req, err := s.normalize(req)
	if err != nil {
		s.observe(req.Culture, metrics.OutcomeError, 0, start)
		return nil, err
	}
	tmpl, ok := s.catalog.Lookup(req.Culture)
	if !ok {
		s.observe(req.Culture, metrics.OutcomeError, 0, start)
		return nil, fmt.Errorf("%w: %q", models.ErrUnknownCulture, req.Culture)
	}
	code := tmpl.Code
	minScore := *req.MinScore
	key := cache.NamesKey(code, string(req.Gender), string(req.Length), req.Count)

	var cached []models.GeneratedName
	if s.cache.GetJSON(ctx, key, &cached) {
		if names := aboveScore(cached, minScore); len(names) >= req.Count {
			resp := s.respond(req, names[:req.Count], true, start)
			s.observe(code, metrics.OutcomeCached, len(resp.Names), start)
			s.recordRequest(resp, code)
			return resp, nil
		}
	}

	flightKey := key + "|" + strconv.FormatFloat(minScore, 'f', -1, 64)
	v, err, _ := s.flight.Do(flightKey, func() (any, error) {
		names, err := s.generate(code, req.Gender, req.Length, req.Count, minScore)
		if err != nil {
			return nil, err
		}
		if len(names) > 0 {
			s.cache.SetJSON(ctx, key, names, s.cfg.ResultTTL)
		}
		return names, nil
	})
	if err != nil {
		s.observe(code, metrics.OutcomeError, 0, start)
		return nil, err
	}

	names := v.([]models.GeneratedName)
	resp := s.respond(req, names, false, start)
	s.observe(code, metrics.OutcomeGenerated, len(resp.Names), start)
	s.recordNames(names, req)
	s.recordRequest(resp, code)
	return resp, nil
}

// generate runs the bounded accept loop: count x attempts_per_name engine
// calls at most, keeping candidates at or above minScore whose names are not
// case-insensitive duplicates of one already kept.
func (s *NameService) generate(code string, gender models.Gender, length models.Length, count int, minScore float64) ([]models.GeneratedName, error) {
	budget := count * s.cfg.AttemptsPerName
	names := make([]models.GeneratedName, 0, count)
	seen := make(map[string]struct{}, count)

	for attempt := 0; attempt < budget && len(names) < count; attempt++ {
		cand, err := s.engine.Generate(code, gender, length)
		if err != nil {
			return nil, err
		}
		if cand.Score < minScore {
			continue
		}
		folded := strings.ToLower(cand.Name)
		if _, dup := seen[folded]; dup {
			continue
		}
		seen[folded] = struct{}{}
		names = append(names, models.GeneratedName{
			Name:          cand.Name,
			Pronunciation: phonetics.Pronunciation(cand.Syllables),
			Syllables:     cand.Syllables,
			Score:         round(cand.Score, 3),
			Culture:       code,
			Gender:        gender,
		})
	}

	if len(names) < count {
		s.logger.Debug("generation returned short",
			zap.String("culture", code),
			zap.Int("requested", count),
			zap.Int("returned", len(names)),
			zap.Int("attempts", budget),
		)
	}
	return names, nil
}

// normalize fills defaults and validates the request.
func (s *NameService) normalize(req models.GenerationRequest) (models.GenerationRequest, error) {
	req.Culture = strings.TrimSpace(req.Culture)
	if req.Count == 0 {
		req.Count = s.cfg.DefaultCount
	}
	if req.MinScore == nil {
		ms := s.cfg.MinScore
		req.MinScore = &ms
	}
	if req.IncludePronunciation == nil {
		yes := true
		req.IncludePronunciation = &yes
	}

	if err := s.validate.Struct(req); err != nil {
		return req, fmt.Errorf("%w: %s", models.ErrInvalidRequest, describe(err))
	}
	if req.Count < 1 || req.Count > s.cfg.MaxCount {
		return req, fmt.Errorf("%w: count must be between 1 and %d", models.ErrInvalidRequest, s.cfg.MaxCount)
	}
	return req, nil
}

func (s *NameService) respond(req models.GenerationRequest, names []models.GeneratedName, cached bool, start time.Time) *models.GenerationResponse {
	out := make([]models.GeneratedName, len(names))
	copy(out, names)
	if !*req.IncludePronunciation {
		for i := range out {
			out[i].Pronunciation = ""
		}
	}
	return &models.GenerationResponse{
		RequestID:  uuid.NewString(),
		Names:      out,
		ElapsedMs:  round(float64(time.Since(start).Microseconds())/1000, 2),
		Cached:     cached,
		Parameters: req,
	}
}

// ValidateName scores an arbitrary name. An empty culture uses the default rules.
func (s *NameService) ValidateName(_ context.Context, name, cultureCode string) (*models.NameValidation, error) {
	name = strings.TrimSpace(name)
	if err := s.validate.Var(name, "required,max=100"); err != nil {
		return nil, fmt.Errorf("%w: name %s", models.ErrInvalidRequest, describe(err))
	}
	code := ""
	if cultureCode != "" {
		tmpl, ok := s.catalog.Lookup(cultureCode)
		if !ok {
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownCulture, cultureCode)
		}
		code = tmpl.Code
	}

	score, issues := s.analyzer.Analyze(name, code)
	syllables := phonetics.Syllabify(name)
	return &models.NameValidation{
		Name:          name,
		Culture:       code,
		Score:         round(score, 3),
		Pronounceable: score >= s.cfg.MinScore,
		Pronunciation: phonetics.Pronunciation(syllables),
		Syllables:     syllables,
		Issues:        issues,
	}, nil
}

// RandomName generates one name, picking a culture at random when none is given.
func (s *NameService) RandomName(ctx context.Context, cultureCode string, gender models.Gender) (*models.GenerationResponse, error) {
	if cultureCode == "" {
		all := s.catalog.All()
		if len(all) == 0 {
			return nil, fmt.Errorf("%w: no cultures loaded", models.ErrUnknownCulture)
		}
		cultureCode = all[s.src.IntN(len(all))].Code
	}
	return s.GenerateNames(ctx, models.GenerationRequest{Culture: cultureCode, Gender: gender, Count: 1})
}

// Cultures lists every loaded culture.
func (s *NameService) Cultures() []models.CultureInfo {
	all := s.catalog.All()
	infos := make([]models.CultureInfo, 0, len(all))
	for _, t := range all {
		infos = append(infos, culture.Info(t))
	}
	return infos
}

// InvalidateCulture drops cached results for a culture. Codes that no longer
// resolve (a removed definition) are invalidated as given, provided they are
// well-formed culture codes.
func (s *NameService) InvalidateCulture(ctx context.Context, code string) (int, error) {
	if tmpl, ok := s.catalog.Lookup(code); ok {
		code = tmpl.Code
	}
	code = strings.ToLower(code)
	if !culture.ValidCode(code) {
		return 0, fmt.Errorf("%w: culture code %q", models.ErrInvalidRequest, code)
	}
	n, err := s.cache.InvalidateCulture(ctx, code)
	if err != nil {
		return n, err
	}
	s.logger.Info("invalidated culture cache", zap.String("culture", code), zap.Int("entries", n))
	return n, nil
}

// CacheStats reports cache performance.
func (s *NameService) CacheStats(ctx context.Context) models.CacheStats {
	return s.cache.Stats(ctx)
}

// Ping reports cache reachability.
func (s *NameService) Ping(ctx context.Context) bool {
	return s.cache.Ping(ctx)
}

// Close stops accepting history writes and waits for in-flight ones.
func (s *NameService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.pending.Wait()
}

func (s *NameService) recordNames(names []models.GeneratedName, req models.GenerationRequest) {
	if s.recorder == nil || len(names) == 0 {
		return
	}
	params := map[string]any{
		"count":     req.Count,
		"min_score": *req.MinScore,
	}
	if req.Gender != models.GenderNone {
		params["gender"] = string(req.Gender)
	}
	if req.Length != models.LengthAny {
		params["length"] = string(req.Length)
	}
	now := time.Now()
	records := make([]models.NameRecord, len(names))
	for i, n := range names {
		records[i] = models.NameRecord{
			Name:          n.Name,
			Culture:       n.Culture,
			Gender:        n.Gender,
			Pronunciation: n.Pronunciation,
			Syllables:     n.Syllables,
			Score:         n.Score,
			Parameters:    params,
			CreatedAt:     now,
		}
	}
	s.async("names", func(ctx context.Context) error {
		return s.recorder.RecordNames(ctx, records)
	})
}

func (s *NameService) recordRequest(resp *models.GenerationResponse, code string) {
	if s.recorder == nil {
		return
	}
	rec := models.RequestRecord{
		RequestID:      resp.RequestID,
		Culture:        code,
		Gender:         resp.Parameters.Gender,
		Count:          resp.Parameters.Count,
		Returned:       len(resp.Names),
		MinScore:       *resp.Parameters.MinScore,
		ResponseTimeMs: resp.ElapsedMs,
		Cached:         resp.Cached,
		Success:        true,
		CreatedAt:      time.Now(),
	}
	s.async("request", func(ctx context.Context) error {
		return s.recorder.RecordRequest(ctx, rec)
	})
}

// async runs fn off the request path unless the service is closing.
func (s *NameService) async(what string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("history write failed", zap.String("record", what), zap.Error(err))
		}
	}()
}

func (s *NameService) observe(code, outcome string, names int, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.Generation(code, outcome, names, time.Since(start))
}

func aboveScore(names []models.GeneratedName, min float64) []models.GeneratedName {
	out := names[:0:0]
	for _, n := range names {
		if n.Score >= min {
			out = append(out, n)
		}
	}
	return out
}

// describe flattens validator errors into "field rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if field == "" {
			field = "value"
		}
		if fe.Param() != "" {
			parts[i] = fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param())
		} else {
			parts[i] = fmt.Sprintf("%s failed %s", field, fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}
