package solution

import (
	"math"

	"github.com/psds-microservice/problem-portal/internal/model"
)

// RecordVote returns a copy of a with exactly one counter incremented.
func RecordVote(a model.SolutionArticle, helpful bool) model.SolutionArticle {
	if helpful {
		a.HelpfulCount++
	} else {
		a.NotHelpfulCount++
	}
	return a
}

// HelpfulPercentage is round(helpful / (helpful+notHelpful) * 100), or 0 with no votes.
func HelpfulPercentage(helpful, notHelpful int) int {
	total := helpful + notHelpful
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(helpful) / float64(total) * 100))
}

// View is an article with its derived presentation values.
type View struct {
	model.SolutionArticle
	HelpfulPercentage int    `json:"helpful_percentage"`
	TotalVotes        int    `json:"total_votes"`
	Excerpt           string `json:"excerpt"`
}

const excerptLength = 150

func Present(a model.SolutionArticle) View {
	return View{
		SolutionArticle:   a,
		HelpfulPercentage: HelpfulPercentage(a.HelpfulCount, a.NotHelpfulCount),
		TotalVotes:        a.TotalVotes(),
		Excerpt:           Excerpt(a.BodyHTML, excerptLength),
	}
}

func PresentAll(articles []model.SolutionArticle) []View {
	out := make([]View, 0, len(articles))
	for _, a := range articles {
		out = append(out, Present(a))
	}
	return out
}
