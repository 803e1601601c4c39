package predict

import (
	"strings"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/gyasis/smalltalk-sub002/types"
)

const defaultEncoding = "cl100k_base"

// requestTypeBuckets label a request by its first matching keyword bucket.
var requestTypeBuckets = []struct {
	label string
	words []string
}{
	{"coding", []string{"code", "bug", "implement", "function", "compile", "debug", "refactor"}},
	{"analysis", []string{"analyze", "analysis", "compare", "evaluate", "assess", "investigate"}},
	{"creative", []string{"write", "story", "poem", "creative", "draft", "blog"}},
	{"planning", []string{"plan", "organize", "schedule", "roadmap", "strategy"}},
	{"review", []string{"review", "critique", "feedback", "proofread"}},
	{"question", []string{"what", "why", "how", "when", "explain", "?"}},
}

// complexityMarkers each add 0.1 to the complexity estimate on top of the
// length component, which caps at 0.6.
var complexityMarkers = []string{
	"architecture", "trade-off", "tradeoff", "comprehensive", "detailed",
	"in depth", "in-depth", "step by step", "multiple", "integrate",
	"optimize", "concurrent", "distributed",
}

// complexityTokenSpan is the token count at which the length component of the
// complexity estimate saturates.
const complexityTokenSpan = 400

// Extractor derives the request feature set used for prediction.
type Extractor struct {
	counter types.TokenCounter
	logger  *zap.Logger
}

// ExtractorOption customizes an Extractor.
type ExtractorOption func(*Extractor)

// WithTokenCounter replaces the default tiktoken counter, mainly so tests can
// pin an exact counting scheme.
func WithTokenCounter(c types.TokenCounter) ExtractorOption {
	return func(e *Extractor) { e.counter = c }
}

// NewExtractor creates an Extractor. The default token counter uses the given
// tiktoken encoding (cl100k_base when empty) and estimates by character count
// when the encoding data is unavailable.
func NewExtractor(encoding string, logger *zap.Logger, opts ...ExtractorOption) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Extractor{
		counter: newTiktokenCounter(encoding, logger),
		logger:  logger.With(zap.String("component", "feature_extractor")),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes the feature set for one request. Analyses contribute the
// top score and variance; the behavior model contributes user tendencies and
// may be nil for unknown users.
func (e *Extractor) Extract(request string, at time.Time, analyses []*types.SkillsMatchAnalysis, behavior *types.UserBehaviorModel) types.RequestFeatures {
	tokens := e.counter.CountTokens(request)

	f := types.RequestFeatures{
		TokenCount:             tokens,
		Complexity:             complexityOf(tokens, request),
		HourOfDay:              at.Hour(),
		RequestType:            requestTypeOf(request),
		HistoricalSatisfaction: 0.5,
	}

	if len(analyses) > 0 {
		scores := make([]float64, len(analyses))
		for i, a := range analyses {
			scores[i] = a.OverallMatch
			if a.OverallMatch > f.TopSkillScore {
				f.TopSkillScore = a.OverallMatch
			}
		}
		f.SkillScoreVariance = variance(scores)
	}

	if behavior != nil {
		f.InterruptionTendency = behavior.InterruptionFrequency
		if behavior.FeedbackCount > 0 {
			f.HistoricalSatisfaction = float64(behavior.PositiveCount) / float64(behavior.FeedbackCount)
		}
	}
	return f
}

func complexityOf(tokens int, request string) float64 {
	c := float64(tokens) / complexityTokenSpan * 0.6
	if c > 0.6 {
		c = 0.6
	}
	lower := strings.ToLower(request)
	for _, marker := range complexityMarkers {
		if strings.Contains(lower, marker) {
			c += 0.1
		}
	}
	return clamp01(c)
}

func requestTypeOf(request string) string {
	lower := strings.ToLower(request)
	for _, bucket := range requestTypeBuckets {
		for _, w := range bucket.words {
			if strings.Contains(lower, w) {
				return bucket.label
			}
		}
	}
	return "general"
}

func variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return sq / float64(len(values))
}

// tiktokenCounter counts tokens with a lazily initialized tiktoken encoding.
// Encoding data may be fetched on first use; when it cannot be loaded the
// counter degrades to the character estimator for the life of the process.
type tiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	fallback types.TokenCounter
	logger   *zap.Logger
}

var _ types.TokenCounter = (*tiktokenCounter)(nil)

func newTiktokenCounter(encoding string, logger *zap.Logger) *tiktokenCounter {
	if encoding == "" {
		encoding = defaultEncoding
	}
	return &tiktokenCounter{
		encoding: encoding,
		fallback: types.NewEstimateTokenizer(),
		logger:   logger,
	}
}

func (c *tiktokenCounter) CountTokens(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.logger.Warn("tiktoken encoding unavailable, estimating tokens",
				zap.String("encoding", c.encoding),
				zap.Error(err),
			)
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return c.fallback.CountTokens(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}
