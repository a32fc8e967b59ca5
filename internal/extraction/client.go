package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const instructionPrompt = "Extract the following details from this receipt image or PDF: " +
	"category (e.g., Groceries), date, and total amount. For total, remove any currency symbols " +
	"and return it as a numeric value only. Return ONLY a raw JSON object with keys: " +
	"category (string), date (string), and total (number)."

// client вызывает multimodal inference-эндпоинт (Gemini generateContent API).
type client struct {
	endpointURL string
	apiKey      string
	httpClient  *http.Client
}

type inferenceRequest struct {
	Contents []inferenceContent `json:"contents"`
}

type inferenceContent struct {
	Parts []inferencePart `json:"parts"`
}

type inferencePart struct {
	InlineData *inlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type inferenceResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func newClient(endpointURL, apiKey string, timeout time.Duration) *client {
	return &client{
		endpointURL: strings.TrimRight(endpointURL, "/"),
		apiKey:      apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// generate отправляет один запрос на извлечение и возвращает текст ответа модели.
func (c *client) generate(ctx context.Context, mimeType, base64Data string) (string, error) {
	request := inferenceRequest{
		Contents: []inferenceContent{
			{
				Parts: []inferencePart{
					{InlineData: &inlineData{MIMEType: mimeType, Data: base64Data}},
					{Text: instructionPrompt},
				},
			},
		},
	}

	payload, err := json.Marshal(request)
	if err != nil {
		return "", &ExtractionError{msg: "encode extraction request", cause: err}
	}

	endpoint := fmt.Sprintf("%s?key=%s", c.endpointURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", &ExtractionError{msg: "build extraction request", cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return "", &ExtractionError{msg: "call extraction endpoint", cause: err}
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return "", &ExtractionError{msg: "read extraction response", cause: err}
	}

	if response.StatusCode == http.StatusTooManyRequests {
		return "", errRateLimited
	}

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		var apiErr inferenceResponse
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != nil {
			return "", &ExtractionError{msg: fmt.Sprintf("extraction endpoint error %d: %s", response.StatusCode, apiErr.Error.Message)}
		}
		return "", &ExtractionError{msg: fmt.Sprintf("extraction endpoint error %d: %s", response.StatusCode, strings.TrimSpace(string(body)))}
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &ExtractionError{msg: "decode extraction response", cause: err}
	}

	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", &ExtractionError{msg: "extraction response missing content"}
	}

	var builder strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}

	return builder.String(), nil
}
