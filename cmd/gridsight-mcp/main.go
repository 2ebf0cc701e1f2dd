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

// extractRequest mirrors the Gridsight API request model.
type extractRequest struct {
	URL           string `json:"url"`
	EnrichDetails bool   `json:"enrich_details,omitempty"`
	MaxPasses     int    `json:"max_passes,omitempty"`
	Timeout       int    `json:"timeout,omitempty"`
}

// metricRecord mirrors one record of the Gridsight API response.
type metricRecord struct {
	Label    string  `json:"label"`
	Views    *string `json:"views"`
	Likes    *string `json:"likes,omitempty"`
	Comments *string `json:"comments,omitempty"`
	Shares   *string `json:"shares,omitempty"`
	Saves    *string `json:"saves,omitempty"`
}

// extractResponse mirrors the Gridsight API response model.
type extractResponse struct {
	Success      bool           `json:"success"`
	Records      []metricRecord `json:"records"`
	Count        int            `json:"count"`
	StrategyUsed string         `json:"strategy_used"`
	Passes       int            `json:"passes"`
	Error        *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// batchResponse mirrors the Gridsight batch API response.
type batchResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Total  int    `json:"total"`
}

// batchStatusResponse mirrors the Gridsight batch status API response.
type batchStatusResponse struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Completed int               `json:"completed"`
	Total     int               `json:"total"`
	Results   []json.RawMessage `json:"results"`
}

// healthResponse mirrors the Gridsight health API response.
type healthResponse struct {
	Status    string `json:"status"`
	Uptime    string `json:"uptime"`
	PoolStats struct {
		MaxPages    int `json:"max_pages"`
		ActivePages int `json:"active_pages"`
	} `json:"pool_stats"`
	Version string `json:"version"`
}

func main() {
	apiURL := os.Getenv("GRIDSIGHT_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("GRIDSIGHT_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "GRIDSIGHT_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"gridsight",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	extractTool := mcp.NewTool("extract_metrics",
		mcp.WithDescription("Extract per-item numeric metrics (view counts etc.) from a grid dashboard page. Scrolls through the whole virtualized grid, so a single call can take minutes."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the dashboard page with the content grid"),
		),
		mcp.WithBoolean("enrich_details",
			mcp.Description("Open each item's detail view to also collect likes/comments/shares/saves (slower)"),
		),
		mcp.WithNumber("max_passes",
			mcp.Description("Cap on scroll sampling passes (default: server-configured, 50)"),
		),
	)
	s.AddTool(extractTool, handleExtractMetrics(apiURL, apiKey))

	batchTool := mcp.NewTool("batch_extract",
		mcp.WithDescription("Extract metrics from several dashboard URLs in one job and wait for all of them to finish."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of dashboard URLs"),
		),
	)
	s.AddTool(batchTool, handleBatchExtract(apiURL, apiKey))

	healthTool := mcp.NewTool("health",
		mcp.WithDescription("Check the Gridsight service health and browser page pool utilisation."),
	)
	s.AddTool(healthTool, handleHealth(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Gridsight API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollJobCompletion polls a job endpoint until status is no longer "processing" or context is cancelled.
func pollJobCompletion(ctx context.Context, client *http.Client, apiURL, apiKey, endpoint string) ([]byte, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+endpoint, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			var status struct {
				Status string `json:"status"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Status != "processing" {
				return body, nil
			}
		}
	}
}

// formatRecords renders extraction records as a plain text table.
func formatRecords(records []metricRecord) string {
	var sb strings.Builder
	for _, r := range records {
		sb.WriteString(r.Label)
		sb.WriteString(": views=")
		sb.WriteString(orDash(r.Views))
		if r.Likes != nil || r.Comments != nil || r.Shares != nil || r.Saves != nil {
			sb.WriteString(fmt.Sprintf(" likes=%s comments=%s shares=%s saves=%s",
				orDash(r.Likes), orDash(r.Comments), orDash(r.Shares), orDash(r.Saves)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func handleExtractMetrics(apiURL, apiKey string) server.ToolHandlerFunc {
	// Extractions run a full multi-pass scroll, so the client timeout is generous.
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := extractRequest{
			URL:           url,
			EnrichDetails: request.GetBool("enrich_details", false),
			MaxPasses:     request.GetInt("max_passes", 0),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/extract", reqBody)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("extract request failed: %v", err)), nil
		}

		var extResp extractResponse
		if err := json.Unmarshal(respBody, &extResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		if !extResp.Success {
			errMsg := "extraction failed"
			if extResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", extResp.Error.Code, extResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		result := fmt.Sprintf("Extracted %d records (strategy=%s, passes=%d)\n\n",
			extResp.Count, extResp.StrategyUsed, extResp.Passes)
		result += formatRecords(extResp.Records)

		return mcp.NewToolResultText(result), nil
	}
}

func handleBatchExtract(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]interface{}{
			"urls": urls,
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/batch/extract", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("batch request failed: %v", err)), nil
		}

		var batchResp batchResponse
		if err := json.Unmarshal(respBody, &batchResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch response: %v", err)), nil
		}

		if batchResp.ID == "" {
			return mcp.NewToolResultError("batch job creation failed"), nil
		}

		resultBody, err := pollJobCompletion(ctx, client, apiURL, apiKey, "/api/v1/batch/"+batchResp.ID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("polling batch job failed: %v", err)), nil
		}

		var statusResp batchStatusResponse
		if err := json.Unmarshal(resultBody, &statusResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse batch status: %v", err)), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("Batch %s: %s (%d/%d completed)\n\n",
			statusResp.ID, statusResp.Status, statusResp.Completed, statusResp.Total))

		for i, raw := range statusResp.Results {
			var er extractResponse
			if err := json.Unmarshal(raw, &er); err != nil {
				sb.WriteString(fmt.Sprintf("--- [%d] parse error ---\n\n", i+1))
				continue
			}
			if er.Success {
				sb.WriteString(fmt.Sprintf("--- [%d] %s: %d records ---\n%s\n",
					i+1, urls[i], er.Count, formatRecords(er.Records)))
			} else {
				errMsg := "unknown error"
				if er.Error != nil {
					errMsg = er.Error.Message
				}
				sb.WriteString(fmt.Sprintf("--- [%d] %s FAILED: %s ---\n\n", i+1, urls[i], errMsg))
			}
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

func handleHealth(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 10 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/health", nil)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("create request: %v", err)), nil
		}
		req.Header.Set("X-API-Key", apiKey)

		resp, err := client.Do(req)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("health request failed: %v", err)), nil
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("read response: %v", err)), nil
		}

		var health healthResponse
		if err := json.Unmarshal(body, &health); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		result := fmt.Sprintf("Status: %s\nUptime: %s\nPages: %d/%d active\nVersion: %s",
			health.Status, health.Uptime,
			health.PoolStats.ActivePages, health.PoolStats.MaxPages,
			health.Version)

		return mcp.NewToolResultText(result), nil
	}
}
