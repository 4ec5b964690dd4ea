// Package scoring rates candidates in batches with a language model and keeps
// the ones above a relevance threshold.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/amishk599/jobreach/internal/llm"
)

// DefaultScore is assigned to items the model did not rate.
const DefaultScore = 50

const (
	reasonNotRated    = "default score (not rated)"
	reasonBatchFailed = "default score (evaluation failed)"
)

// Item is anything that can carry a relevance score.
type Item interface {
	Score() (int, bool)
	SetRelevance(score int, reason, angle string)
}

// Chatter is the part of the gateway the scorer needs.
type Chatter interface {
	ChatJSON(ctx context.Context, messages []llm.Message, temperature float64, maxTokens int) (json.RawMessage, error)
}

// Options configures one scoring pass.
type Options[T Item] struct {
	BatchSize   int
	Threshold   int
	Temperature float64
	// Prompt renders the messages for one batch; positions are 1-based.
	Prompt func(batch []T) ([]llm.Message, error)
}

// Score rates items batch by batch and returns those scoring at least
// opts.Threshold, highest first. Ties keep their input order. A failed batch
// never aborts the pass; its items get DefaultScore.
func Score[T Item](ctx context.Context, chat Chatter, items []T, opts Options[T], logger *slog.Logger) []T {
	size := opts.BatchSize
	if size <= 0 {
		size = 5
	}

	for start := 0; start < len(items); start += size {
		if ctx.Err() != nil {
			break
		}
		batch := items[start:min(start+size, len(items))]
		if err := scoreBatch(ctx, chat, batch, opts); err != nil {
			logger.Error("scoring batch failed", "batch_start", start, "batch_size", len(batch), "error", err)
			applyDefault(batch, reasonBatchFailed)
			continue
		}
		applyDefault(batch, reasonNotRated)
	}

	relevant := make([]T, 0, len(items))
	for _, it := range items {
		if s, ok := it.Score(); ok && s >= opts.Threshold {
			relevant = append(relevant, it)
		}
	}
	slices.SortStableFunc(relevant, func(a, b T) int {
		sa, _ := a.Score()
		sb, _ := b.Score()
		return sb - sa
	})

	logger.Info("scoring complete",
		"relevant", len(relevant),
		"total", len(items),
		"threshold", opts.Threshold,
	)
	return relevant
}

func scoreBatch[T Item](ctx context.Context, chat Chatter, batch []T, opts Options[T]) error {
	messages, err := opts.Prompt(batch)
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}
	raw, err := chat.ChatJSON(ctx, messages, opts.Temperature, 0)
	if err != nil {
		return err
	}
	annotations, err := ParseAnnotations(raw)
	if err != nil {
		return err
	}
	for _, a := range annotations {
		idx := a.Position - 1
		if idx < 0 || idx >= len(batch) {
			continue
		}
		batch[idx].SetRelevance(a.Score, a.Reason, a.Angle)
	}
	return nil
}

func applyDefault[T Item](batch []T, reason string) {
	for _, it := range batch {
		if _, ok := it.Score(); !ok {
			it.SetRelevance(DefaultScore, reason, "")
		}
	}
}
