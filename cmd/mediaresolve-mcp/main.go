package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// mediaRef mirrors one entry of the API's media list.
type mediaRef struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// resolveResponse mirrors the resolve API response.
type resolveResponse struct {
	Media    []mediaRef `json:"media"`
	FinalURL string     `json:"final_url"`
	Error    *apiError  `json:"error"`
}

// batchResponse mirrors the batch creation response.
type batchResponse struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Total  int       `json:"total"`
	Error  *apiError `json:"error"`
}

// batchStatusResponse mirrors the batch status response.
type batchStatusResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Results   []struct {
		URL   string     `json:"url"`
		Media []mediaRef `json:"media"`
		Error *apiError  `json:"error"`
	} `json:"results"`
}

func main() {
	apiURL := strings.TrimSuffix(os.Getenv("MEDIARESOLVE_API_URL"), "/")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:10000"
	}
	apiKey := os.Getenv("MEDIARESOLVE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "MEDIARESOLVE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"mediaresolve",
		"0.1.0",
		server.WithToolCapabilities(false),
	)

	resolveTool := mcp.NewTool("resolve_media",
		mcp.WithDescription("Resolve a public Instagram post or reel URL into the direct image and video URLs it contains. Renders the page in a headless browser."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The post or reel URL"),
		),
		mcp.WithBoolean("no_cache",
			mcp.Description("Bypass the server's resolution cache"),
		),
	)
	s.AddTool(resolveTool, handleResolve(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_resolve",
		mcp.WithDescription("Resolve several post URLs in parallel and list the media found for each."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of post or reel URLs (max 50)"),
		),
	)
	s.AddTool(batchTool, handleBatchResolve(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiDo sends a request to the resolver API and returns the response body.
func apiDo(ctx context.Context, client *http.Client, method, endpoint, apiKey string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollBatch polls a batch until its status is no longer "processing" or ctx is cancelled.
func pollBatch(ctx context.Context, client *http.Client, endpoint, apiKey string) (*batchStatusResponse, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			body, err := apiDo(ctx, client, http.MethodGet, endpoint, apiKey, nil)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}
			var status batchStatusResponse
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}
			if status.Status != "processing" {
				return &status, nil
			}
		}
	}
}

func writeMedia(sb *strings.Builder, media []mediaRef) {
	if len(media) == 0 {
		sb.WriteString("(no media found)\n")
		return
	}
	for _, m := range media {
		fmt.Fprintf(sb, "%s\t%s\n", m.Type, m.URL)
	}
}

func handleResolve(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]any{"url": url}
		if request.GetBool("no_cache", false) {
			payload["no_cache"] = true
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/resolve", apiKey, payload)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var resp resolveResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}
		if resp.Error != nil {
			return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)), nil
		}

		var sb strings.Builder
		if resp.FinalURL != "" {
			fmt.Fprintf(&sb, "Source: %s\n\n", resp.FinalURL)
		}
		writeMedia(&sb, resp.Media)
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleBatchResolve(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 150 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		respBody, err := apiDo(ctx, client, http.MethodPost, apiURL+"/api/v1/batch/resolve", apiKey, map[string]any{"urls": urls})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var created batchResponse
		if err := json.Unmarshal(respBody, &created); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}
		if created.ID == "" {
			msg := "batch job creation failed"
			if created.Error != nil {
				msg = fmt.Sprintf("[%s] %s", created.Error.Code, created.Error.Message)
			}
			return mcp.NewToolResultError(msg), nil
		}

		status, err := pollBatch(ctx, client, apiURL+"/api/v1/batch/"+created.ID, apiKey)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Batch %s: %s (%d/%d completed)\n\n", status.ID, status.Status, status.Completed, status.Total)
		for i, item := range status.Results {
			fmt.Fprintf(&sb, "--- [%d] %s ---\n", i+1, item.URL)
			if item.Error != nil {
				fmt.Fprintf(&sb, "FAILED: %s\n\n", item.Error.Message)
				continue
			}
			writeMedia(&sb, item.Media)
			sb.WriteString("\n")
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
