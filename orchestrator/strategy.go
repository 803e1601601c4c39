package orchestrator

import (
	"context"

	"github.com/gyasis/smalltalk-sub002/routing/pattern"
	"github.com/gyasis/smalltalk-sub002/routing/predict"
	"github.com/gyasis/smalltalk-sub002/routing/sequence"
	"github.com/gyasis/smalltalk-sub002/routing/skills"
	"github.com/gyasis/smalltalk-sub002/types"
)

// SkillsAnalyzer scores a worker roster against one request.
type SkillsAnalyzer interface {
	Match(ctx context.Context, request string, profiles []*types.WorkerProfile, recent []types.Turn) ([]*types.SkillsMatchAnalysis, error)
}

// PatternStrategy picks a collaboration pattern for the scored roster.
type PatternStrategy interface {
	Select(ctx context.Context, request string, analyses []*types.SkillsMatchAnalysis) (*types.CollaborationRecommendation, error)
}

// SequenceStrategy orders the recommended collaboration into executable steps.
type SequenceStrategy interface {
	Optimize(ctx context.Context, request string, rec *types.CollaborationRecommendation, analyses []*types.SkillsMatchAnalysis) (*types.OptimizedSequence, error)
}

// RoutePredictor folds routing history and user behavior into ranked routes.
type RoutePredictor interface {
	Predict(ctx context.Context, in *predict.Input) (*types.RoutingPrediction, error)
}

// The routing packages provide the default strategy implementations.
var (
	_ SkillsAnalyzer   = (*skills.Matcher)(nil)
	_ PatternStrategy  = (*pattern.Selector)(nil)
	_ SequenceStrategy = (*sequence.Optimizer)(nil)
	_ RoutePredictor   = (*predict.Router)(nil)
)
