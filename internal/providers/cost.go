package providers

import (
	"log/slog"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/aigoflow/multichat-service/internal/config"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

// EstimateTokens counts tokens with the cl100k_base encoding. When the
// encoding cannot be loaded it falls back to one token per four bytes.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	encOnce.Do(func() {
		e, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			slog.Warn("Token encoder unavailable, using length heuristic", "error", err)
			return
		}
		enc = e
	})
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Cost prices a call with the service's per-1K token rates
func Cost(svc config.ServiceConfig, tokensIn, tokensOut int) float64 {
	return float64(tokensIn)/1000*svc.InputPer1K + float64(tokensOut)/1000*svc.OutputPer1K
}
