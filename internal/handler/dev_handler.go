package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/harshkolte01/tutor-bot/internal/pkg/response"
	"github.com/harshkolte01/tutor-bot/internal/wrapper"
)

// DevHandler exposes connectivity probes for operators; nothing here is
// part of the product API.
type DevHandler struct {
	client     *wrapper.Client
	chatModel  string
	embedModel string
}

func NewDevHandler(client *wrapper.Client, chatModel, embedModel string) *DevHandler {
	return &DevHandler{client: client, chatModel: chatModel, embedModel: embedModel}
}

type smokeResult struct {
	OK             bool   `json:"ok"`
	Error          string `json:"error,omitempty"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}

// WrapperSmoke fires one minimal chat completion and one embedding through
// the wrapper and reports per-call results. 200 when both succeed, 502
// otherwise.
func (h *DevHandler) WrapperSmoke(c *gin.Context) {
	ctx := c.Request.Context()

	chat := smokeResult{OK: true}
	_, err := h.client.ChatCompletions(ctx, &wrapper.ChatRequest{
		Model: h.chatModel,
		Messages: []wrapper.ChatMessage{
			{Role: "user", Content: "Reply with the single word: ok"},
		},
		MaxTokens: 8,
	})
	if err != nil {
		chat = toSmokeResult(err)
	}

	embed := smokeResult{OK: true}
	if _, err := h.client.Embeddings(ctx, h.embedModel, []string{"smoke test"}); err != nil {
		embed = toSmokeResult(err)
	}

	status := http.StatusOK
	if !chat.OK || !embed.OK {
		status = http.StatusBadGateway
	}
	response.SuccessStatus(c, status, gin.H{"chat": chat, "embedding": embed})
}

func toSmokeResult(err error) smokeResult {
	result := smokeResult{OK: false, Error: err.Error()}
	var wErr *wrapper.Error
	if errors.As(err, &wErr) {
		result.UpstreamStatus = wErr.StatusCode
	}
	return result
}
