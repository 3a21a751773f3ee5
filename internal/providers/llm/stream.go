package llm

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sandevgo/vexd/internal/core"
)

const dataPrefix = "data: "

type sseChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// consumeStream parses an incremental event body and forwards text
// fragments until the [DONE] sentinel, stream closure, or cancellation.
// The returned channel is closed when the stream ends; a delta with a
// non-nil Err is terminal. Cancelling ctx closes the underlying
// connection, so the reader unblocks without polling.
func consumeStream(ctx context.Context, body io.ReadCloser) <-chan core.StreamDelta {
	out := make(chan core.StreamDelta)

	go func() {
		defer close(out)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			data := strings.TrimSpace(line[len(dataPrefix):])
			if data == "[DONE]" {
				return
			}

			var chunk sseChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			content := chunk.Choices[0].Delta.Content
			if content == "" {
				continue
			}

			select {
			case out <- core.StreamDelta{Content: content}:
			case <-ctx.Done():
				return
			}
		}

		// A read error caused by cancellation is expected; everything
		// yielded so far remains valid for the caller to persist.
		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- core.StreamDelta{Err: fmt.Errorf("read stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out
}

func parseOnceResponse(resp *http.Response) (core.Message, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.Message{}, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return core.Message{}, fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message core.Message `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return core.Message{}, fmt.Errorf("decode: %w", err)
	}
	if len(result.Choices) == 0 {
		return core.Message{}, fmt.Errorf("empty choices: %s", string(data))
	}
	return result.Choices[0].Message, nil
}

func checkStreamStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return fmt.Errorf("http %d: %s", resp.StatusCode, string(data))
}
