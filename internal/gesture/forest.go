package gesture

import (
	"context"

	randomforest "github.com/malaschitz/randomForest"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	// Trees is the number of trees in the ensemble (default: 100).
	Trees int `mapstructure:"trees"`

	// MaxDepth bounds the depth of every tree (default: 20).
	MaxDepth int `mapstructure:"max_depth"`

	// LeafSize is the sample count at which a node stops splitting
	// (default: 1).
	LeafSize int `mapstructure:"leaf_size"`
}

// DefaultForestConfig returns the default forest hyperparameters.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:    100,
		MaxDepth: 20,
		LeafSize: 1,
	}
}

// fitForest trains a forest on (x, y), where y holds class indices in
// [0, classes). The training rows are dropped from the returned forest so
// that only the trees are persisted.
func fitForest(ctx context.Context, x [][]float64, y []int, cfg ForestConfig) (*randomforest.Forest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	leaf := cfg.LeafSize
	if leaf < 1 {
		leaf = 1
	}

	forest := &randomforest.Forest{
		Data:     randomforest.ForestData{X: x, Class: y},
		MaxDepth: cfg.MaxDepth,
		LeafSize: leaf,
	}
	forest.Train(cfg.Trees)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	forest.Data = randomforest.ForestData{}
	return forest, nil
}
