// Package notify delivers paper notifications to messaging webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arxivpulse/pulse-service/internal/domain"
)

// DefaultTimeout is the default webhook call timeout.
const DefaultTimeout = 10 * time.Second

// alphaXivBaseURL is the AlphaXiv mirror for paper discussion pages.
const alphaXivBaseURL = "https://www.alphaxiv.org/abs/"

// Notifier delivers a notification for a freshly summarized paper.
// Delivery is best effort: a failed notification is logged and counted but
// never retried and never unwinds the summary that triggered it.
type Notifier interface {
	// NotifyPaper sends a notification for the given paper. The paper is
	// expected to carry a non-nil LocalSummary.
	NotifyPaper(ctx context.Context, paper *domain.Paper) error
}

// markdownMessage is the DingTalk robot webhook payload.
type markdownMessage struct {
	MsgType  string          `json:"msgtype"`
	Markdown markdownContent `json:"markdown"`
}

type markdownContent struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// webhookResponse is the DingTalk robot webhook response body. A 200 status
// with a non-zero errcode still means the message was rejected.
type webhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalkNotifier implements Notifier using a DingTalk robot webhook.
type DingTalkNotifier struct {
	webhookURL string
	httpClient *http.Client
	logger     zerolog.Logger
}

// Ensure DingTalkNotifier implements Notifier.
var _ Notifier = (*DingTalkNotifier)(nil)

// NewDingTalkNotifier creates a DingTalk webhook notifier. The webhook URL
// must include the robot access token.
func NewDingTalkNotifier(webhookURL string, timeout time.Duration, logger zerolog.Logger) *DingTalkNotifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &DingTalkNotifier{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NotifyPaper sends a markdown notification for the given paper.
func (n *DingTalkNotifier) NotifyPaper(ctx context.Context, paper *domain.Paper) error {
	if n.webhookURL == "" {
		return fmt.Errorf("dingtalk: %w: webhook URL not configured", domain.ErrNotificationFailed)
	}
	if paper == nil {
		return fmt.Errorf("dingtalk: %w: nil paper", domain.ErrNotificationFailed)
	}

	message := markdownMessage{
		MsgType: "markdown",
		Markdown: markdownContent{
			Title: "新论文推送",
			Text:  buildMarkdownText(paper),
		},
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("dingtalk: failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("dingtalk: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dingtalk: %w: %v", domain.ErrNotificationFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("dingtalk: %w: status %d: %s", domain.ErrNotificationFailed, resp.StatusCode, string(respBody))
	}

	// DingTalk reports delivery errors in the body with HTTP 200.
	var webhookResp webhookResponse
	if err := json.Unmarshal(respBody, &webhookResp); err == nil && webhookResp.ErrCode != 0 {
		return fmt.Errorf("dingtalk: %w: errcode %d: %s", domain.ErrNotificationFailed, webhookResp.ErrCode, webhookResp.ErrMsg)
	}

	n.logger.Info().
		Str("arxiv_id", paper.ArxivID).
		Str("title", truncate(paper.Title, 50)).
		Msg("dingtalk notification sent")

	return nil
}

// buildMarkdownText renders the notification body.
func buildMarkdownText(paper *domain.Paper) string {
	summary := ""
	if paper.LocalSummary != nil {
		summary = *paper.LocalSummary
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("# 📚 新论文推送**标题：** %s\n\n", paper.Title))
	sb.WriteString(fmt.Sprintf("**作者：** %s\n\n", paper.Authors))
	sb.WriteString(fmt.Sprintf("**发布时间：** %s\n\n", paper.PublishedAt.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("**中文摘要：**\n%s\n\n", summary))
	sb.WriteString(fmt.Sprintf("**原文链接：** [点击查看](%s)\n\n", paper.Link))
	sb.WriteString(fmt.Sprintf("**AlphaXiv：** [点击查看](%s)\n\n", alphaXivLink(paper)))
	sb.WriteString("---\n_来自 Arxiv Pulse 自动推送_")
	return sb.String()
}

// alphaXivLink derives the AlphaXiv discussion page URL from the paper link.
func alphaXivLink(paper *domain.Paper) string {
	link := strings.TrimRight(paper.Link, "/")
	if idx := strings.LastIndex(link, "/"); idx >= 0 {
		link = link[idx+1:]
	}
	if link == "" {
		link = paper.ArxivID
	}
	return alphaXivBaseURL + strings.TrimSpace(link)
}

// truncate shortens a string for log fields.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
