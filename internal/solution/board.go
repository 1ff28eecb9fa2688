package solution

import (
	"sync"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// Board holds the vote counters of one loaded solution list. Votes on
// different articles may come from concurrent callers.
type Board struct {
	mu       sync.Mutex
	order    []string
	articles map[string]model.SolutionArticle
}

func NewBoard(articles []model.SolutionArticle) *Board {
	b := &Board{articles: make(map[string]model.SolutionArticle, len(articles))}
	for _, a := range articles {
		if _, dup := b.articles[a.ID]; !dup {
			b.order = append(b.order, a.ID)
		}
		b.articles[a.ID] = a
	}
	return b
}

// Vote increments one counter of the article and returns the updated copy.
func (b *Board) Vote(id string, helpful bool) (model.SolutionArticle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.articles[id]
	if !ok {
		return model.SolutionArticle{}, false
	}
	a = RecordVote(a, helpful)
	b.articles[id] = a
	return a, true
}

func (b *Board) Get(id string) (model.SolutionArticle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.articles[id]
	return a, ok
}

// Articles returns the articles in load order.
func (b *Board) Articles() []model.SolutionArticle {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.SolutionArticle, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.articles[id])
	}
	return out
}
