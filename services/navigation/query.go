package navigation

import (
	"context"
	"image"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/voxelnav/mapping/instance"
	"go.viam.com/voxelnav/vision"
)

// FindInstances returns the instances of a category ranked by score, best first. An unknown
// category matches nothing.
func (a *Agent) FindInstances(category string) []Match {
	id, ok := a.segmenter.CategoryID(category)
	if !ok {
		a.logger.Debugw("unknown category", "category", category)
		return nil
	}
	matches := lo.FilterMap(a.vmap.Instances(), func(inst *instance.Instance, _ int) (Match, bool) {
		return Match{Instance: inst, Category: category, Score: inst.Score}, inst.CategoryID == id
	})
	slices.SortStableFunc(matches, byScore)
	return matches
}

// AllInstances returns every instance in the map ranked by score, best first.
func (a *Agent) AllInstances() []Match {
	matches := lo.Map(a.vmap.Instances(), func(inst *instance.Instance, _ int) Match {
		return Match{Instance: inst, Category: a.segmenter.CategoryName(inst.CategoryID), Score: inst.Score}
	})
	slices.SortStableFunc(matches, byScore)
	return matches
}

func byScore(a, b Match) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return 0
}

// LocalizeByText finds the instance whose embedding is closest to the text's.
func (a *Agent) LocalizeByText(ctx context.Context, text string) (*Match, QueryStats, error) {
	if a.encoder == nil {
		return nil, QueryStats{}, errors.New("no encoder configured")
	}
	query, err := a.encoder.EncodeText(ctx, text)
	if err != nil {
		return nil, QueryStats{}, errors.Wrapf(err, "encoding %q", text)
	}
	return a.localize(query, "text", text)
}

// LocalizeByImage finds the instance whose embedding is closest to the image's.
func (a *Agent) LocalizeByImage(ctx context.Context, img image.Image) (*Match, QueryStats, error) {
	if a.encoder == nil {
		return nil, QueryStats{}, errors.New("no encoder configured")
	}
	query, err := a.encoder.EncodeImage(ctx, img)
	if err != nil {
		return nil, QueryStats{}, errors.Wrap(err, "encoding image")
	}
	return a.localize(query, "image", "")
}

// localize scores every instance with an embedding by cosine similarity. Nothing to compare
// against is a nil match, not an error.
func (a *Agent) localize(query []float64, kind, text string) (*Match, QueryStats, error) {
	query = vision.Normalize(query)
	var (
		best   *Match
		scores []float64
	)
	for _, inst := range a.vmap.Instances() {
		emb := inst.Embedding(a.cfg.Aggregation, true)
		if len(emb) == 0 || len(emb) != len(query) {
			continue
		}
		score := vision.CosineSimilarity(query, emb)
		scores = append(scores, score)
		if best == nil || score > best.Score {
			best = &Match{Instance: inst, Category: a.segmenter.CategoryName(inst.CategoryID), Score: score}
		}
	}
	if best == nil {
		a.logger.Infow("no candidates for query", "kind", kind, "text", text)
		return nil, QueryStats{}, nil
	}

	qs, err := queryStats(scores)
	if err != nil {
		return nil, QueryStats{}, err
	}
	a.logger.Infow("localized query",
		"kind", kind,
		"text", text,
		"instance", best.Instance.ID,
		"score", best.Score,
		"mean", qs.Mean,
		"median", qs.Median,
		"min", qs.Min,
		"max", qs.Max,
	)
	return best, qs, nil
}

func queryStats(scores []float64) (QueryStats, error) {
	data := stats.Float64Data(scores)
	mean, err := data.Mean()
	if err != nil {
		return QueryStats{}, err
	}
	median, err := data.Median()
	if err != nil {
		return QueryStats{}, err
	}
	minScore, err := data.Min()
	if err != nil {
		return QueryStats{}, err
	}
	maxScore, err := data.Max()
	if err != nil {
		return QueryStats{}, err
	}
	return QueryStats{Mean: mean, Median: median, Min: minScore, Max: maxScore, Raw: scores}, nil
}
