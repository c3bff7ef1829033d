package memory

import (
	"context"
	"time"
)

// MergeSimilarEpisodes folds episodes of the same task type whose embeddings
// have cosine similarity >= threshold into the older episode. The survivor
// keeps the max importance and the mean reward. It returns the number of
// episodes folded away.
func (s *System) MergeSimilarEpisodes(ctx context.Context, threshold float64) (int, error) {
	s.mu.Lock()
	var removed []string
	survivors := make(map[string]*Episode)

	for i := 0; i < len(s.episodeOrder); i++ {
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return len(removed), err
		}
		a := s.episodes[s.episodeOrder[i]]
		for j := i + 1; j < len(s.episodeOrder); j++ {
			b := s.episodes[s.episodeOrder[j]]
			if a.TaskType != b.TaskType || CosineSimilarity(a.Embedding, b.Embedding) < threshold {
				continue
			}

			weightA := float64(a.Merged + 1)
			a.Reward = (a.Reward*weightA + b.Reward) / (weightA + 1)
			if b.Importance > a.Importance {
				a.Importance = b.Importance
			}
			a.Success = a.Success || b.Success
			a.Replays += b.Replays
			a.Merged += b.Merged + 1
			a.UpdatedAt = s.clock()
			survivors[a.ID] = a

			removed = append(removed, b.ID)
			s.removeEpisodeLocked(b.ID)
			delete(survivors, b.ID)
			j--
		}
	}

	mirrors := make([]Episode, 0, len(survivors))
	for _, ep := range survivors {
		mirrors = append(mirrors, cloneEpisode(*ep))
	}
	s.mu.Unlock()

	for i := range mirrors {
		s.persistEpisode(ctx, &mirrors[i])
	}
	for _, id := range removed {
		s.unpersistEpisode(ctx, id)
	}
	return len(removed), nil
}

// PruneEpisodes deletes consolidated episodes with importance below
// minImportance that were created before cutoff.
func (s *System) PruneEpisodes(ctx context.Context, minImportance float64, cutoff time.Time) (int, error) {
	s.mu.Lock()
	var victims []string
	for _, id := range s.episodeOrder {
		ep := s.episodes[id]
		if ep.Consolidated && ep.Importance < minImportance && ep.CreatedAt.Before(cutoff) {
			victims = append(victims, id)
		}
	}
	for _, id := range victims {
		s.removeEpisodeLocked(id)
	}
	s.mu.Unlock()

	for _, id := range victims {
		if err := ctx.Err(); err != nil {
			return len(victims), err
		}
		s.unpersistEpisode(ctx, id)
	}
	return len(victims), nil
}

// MarkCompacted records the time of the last completed compaction
func (s *System) MarkCompacted(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCompaction = at
}
