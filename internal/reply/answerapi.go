package reply

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"tradebot/internal/domain"
)

// defaultAnswer is substituted when the service responds without an answer
// field. A 2xx with no text still counts as a usable reply.
const defaultAnswer = "We'll get back to you shortly."

// AnswerAPI queries the grounded answer service. Any failure (transport
// error, non-2xx status, undecodable body) is treated as "no answer" and
// falls through the chain rather than escalating.
type AnswerAPI struct {
	url     string
	timeout time.Duration
	client  *http.Client
	logger  *slog.Logger
}

func NewAnswerAPI(url string, timeout time.Duration, logger *slog.Logger) *AnswerAPI {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerAPI{
		url:     url,
		timeout: timeout,
		client:  newHTTPClient(timeout),
		logger:  logger,
	}
}

func (a *AnswerAPI) Name() string                  { return "answer-api" }
func (a *AnswerAPI) Provenance() domain.Provenance { return domain.ProvenanceAPI }

type answerRequest struct {
	Query string `json:"query"`
	Image string `json:"image,omitempty"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

func (a *AnswerAPI) Generate(ctx context.Context, q domain.Query) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(answerRequest{Query: q.Text, Image: q.ImageURL})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("answer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("answer service status %d: %s", resp.StatusCode, snippet)
	}

	var decoded answerResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode answer: %w", err)
	}

	if decoded.Answer == "" {
		return defaultAnswer, nil
	}
	a.logger.Debug("answer service replied", "len", len(decoded.Answer))
	return decoded.Answer, nil
}
