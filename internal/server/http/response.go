package httpserver

import (
	"strings"
	"time"

	"github.com/arxivpulse/pulse-service/internal/domain"
)

type paperResponse struct {
	ArxivID      string    `json:"arxiv_id"`
	Title        string    `json:"title"`
	Abstract     string    `json:"abstract,omitempty"`
	Authors      []string  `json:"authors,omitempty"`
	Categories   []string  `json:"categories,omitempty"`
	Link         string    `json:"link,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LocalSummary string    `json:"local_summary,omitempty"`
	IngestedAt   time.Time `json:"ingested_at"`
}

type statsResponse struct {
	Papers int64 `json:"papers"`
}

func domainPaperToResponse(p *domain.Paper) paperResponse {
	resp := paperResponse{
		ArxivID:     p.ArxivID,
		Title:       p.Title,
		Abstract:    p.Abstract,
		Authors:     splitList(p.Authors, ", "),
		Categories:  splitList(p.Categories, ","),
		Link:        p.Link,
		PublishedAt: p.PublishedAt,
		UpdatedAt:   p.UpdatedAt,
		IngestedAt:  p.IngestedAt,
	}
	if p.LocalSummary != nil {
		resp.LocalSummary = *p.LocalSummary
	}
	return resp
}

func splitList(joined, sep string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, sep)
}
