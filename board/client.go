package board

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/zenibako/boardsync/queries"
)

// DefaultEndpoint is the hosted board API.
const DefaultEndpoint = "https://api.monday.com/v2"

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 500

// Client talks to the board GraphQL API. It holds only configuration; every
// operation is a single request except the paginated item listing.
type Client struct {
	endpoint      string
	apiKey        string
	apiVersion    string
	httpClient    *http.Client
	pageSize      int
	dryRun        bool       // mutations are logged and answered locally
	dryRunCounter int        // source of DRYRUN-n ids
	dryRunMu      sync.Mutex // protects dryRunCounter
	logger        *log.Logger
}

func NewClient(endpoint, apiKey string) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		pageSize:   DefaultPageSize,
		logger:     log.Default(),
	}
}

// SetDryRun sets whether mutations are sent. Reads always go to the API.
func (c *Client) SetDryRun(dryRun bool) {
	c.dryRun = dryRun
}

// DryRun reports whether mutations are suppressed.
func (c *Client) DryRun() bool {
	return c.dryRun
}

// SetTimeout sets the per-request HTTP timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.httpClient.Timeout = timeout
}

// SetAPIVersion sets the API-Version header. Empty leaves it off.
func (c *Client) SetAPIVersion(version string) {
	c.apiVersion = version
}

// SetPageSize sets the item page size used by ListItemsInGroup.
func (c *Client) SetPageSize(size int) {
	if size > 0 {
		c.pageSize = size
	}
}

func (c *Client) SetLogger(logger *log.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

type envelope struct {
	Data         json.RawMessage `json:"data"`
	Errors       []graphQLError  `json:"errors"`
	ErrorCode    string          `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
	StatusCode   int             `json:"status_code"`
}

type graphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

// do sends one operation and decodes the response data into out.
func (c *Client) do(ctx context.Context, op queries.Operation, boardID string, params map[string]any, out any) error {
	req, err := queries.NewBuilder(boardID).Build(op, params)
	if err != nil {
		return newError(ErrRemoteValidation, op, "could not build request", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return newError(ErrRemoteValidation, op, "could not encode request", err)
	}

	if c.dryRun && queries.IsMutation(op) {
		c.logger.Infof("[DRY RUN] Would send %s %s", op, formatVariables(req.Variables))
		return decodeData(op, c.mockDryRunResponse(op), out)
	}

	logPrettyJSON(c.logger, log.DebugLevel, fmt.Sprintf("Sending %s", op), string(body))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return newError(ErrUnreachable, op, "could not create request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", c.apiKey)
	if c.apiVersion != "" {
		httpReq.Header.Set("API-Version", c.apiVersion)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return newError(ErrUnreachable, op, "request failed", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return newError(ErrUnreachable, op, "could not read response", err)
	}
	logPrettyJSON(c.logger, log.DebugLevel, fmt.Sprintf("Received %s (HTTP %d)", op, resp.StatusCode), string(raw))

	if err := classifyStatus(op, resp.StatusCode, raw); err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return newError(ErrUnexpectedShape, op, "response is not JSON", err)
	}
	if err := classifyEnvelope(op, env, raw); err != nil {
		return err
	}

	return decodeData(op, env.Data, out)
}

func classifyStatus(op queries.Operation, status int, raw []byte) error {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuthRejected
	case status == http.StatusTooManyRequests || status >= 500:
		kind = ErrUnreachable
	case status >= 400:
		kind = ErrRemoteValidation
	default:
		return nil
	}
	e := newError(kind, op, formatErrorWithJSON(fmt.Sprintf("HTTP %d", status), string(raw)), nil)
	e.StatusCode = status
	return e
}

func classifyEnvelope(op queries.Operation, env envelope, raw []byte) error {
	if len(env.Errors) == 0 && env.ErrorCode == "" {
		return nil
	}

	codes := []string{env.ErrorCode}
	messages := []string{}
	if env.ErrorMessage != "" {
		messages = append(messages, env.ErrorMessage)
	}
	for _, ge := range env.Errors {
		codes = append(codes, ge.Extensions.Code)
		messages = append(messages, ge.Message)
	}

	kind := ErrRemoteValidation
	for _, code := range codes {
		upper := strings.ToUpper(code)
		switch {
		case strings.Contains(upper, "UNAUTHORIZED"), strings.Contains(upper, "AUTHENTICATION"):
			kind = ErrAuthRejected
		case strings.Contains(upper, "RATE_LIMIT"), strings.Contains(upper, "COMPLEXITY_BUDGET"):
			kind = ErrUnreachable
		}
	}

	msg := strings.Join(messages, "; ")
	if msg == "" {
		msg = formatErrorWithJSON("error response", string(raw))
	}
	return newError(kind, op, msg, nil)
}

func decodeData(op queries.Operation, data json.RawMessage, out any) error {
	if len(data) == 0 || string(data) == "null" {
		return newError(ErrUnexpectedShape, op, "response has no data", nil)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return newError(ErrUnexpectedShape, op, "could not decode data", err)
	}
	return nil
}

// mockDryRunResponse answers a mutation without sending it. Creations get
// synthetic ids so later steps can refer to them.
func (c *Client) mockDryRunResponse(op queries.Operation) json.RawMessage {
	c.dryRunMu.Lock()
	c.dryRunCounter++
	id := fmt.Sprintf("DRYRUN-%d", c.dryRunCounter)
	c.dryRunMu.Unlock()

	field := map[queries.Operation]string{
		queries.OpCreateBoard:       "create_board",
		queries.OpCreateGroup:       "create_group",
		queries.OpArchiveGroup:      "archive_group",
		queries.OpCreateColumn:      "create_column",
		queries.OpDeleteColumn:      "delete_column",
		queries.OpCreateItem:        "create_item",
		queries.OpUpdateItemColumns: "change_multiple_column_values",
	}[op]
	if field == "" {
		return json.RawMessage(`{"dry_run": true}`)
	}
	return json.RawMessage(fmt.Sprintf(`{%q: {"id": %q}}`, field, id))
}

// Helper for pretty JSON logging
func logPrettyJSON(logger *log.Logger, level log.Level, message string, jsonStr string) {
	if logger.GetLevel() > level {
		return
	}
	var jsonData any
	if err := json.Unmarshal([]byte(jsonStr), &jsonData); err != nil {
		logger.Log(level, message, "raw", jsonStr)
		return
	}

	prettyBytes, err := json.MarshalIndent(jsonData, "", "  ")
	if err != nil {
		logger.Log(level, message, "data", jsonData)
		return
	}

	logger.Log(level, message+"\n"+string(prettyBytes))
}

// formatErrorWithJSON renders an error body compactly, falling back to the raw text.
func formatErrorWithJSON(baseMessage string, jsonStr string) string {
	var jsonData any
	if err := json.Unmarshal([]byte(jsonStr), &jsonData); err != nil {
		return fmt.Sprintf("%s: %s", baseMessage, strings.TrimSpace(jsonStr))
	}
	compact, err := json.Marshal(jsonData)
	if err != nil {
		return fmt.Sprintf("%s: %v", baseMessage, jsonData)
	}
	return fmt.Sprintf("%s: %s", baseMessage, compact)
}

func formatVariables(vars map[string]any) string {
	b, err := json.Marshal(vars)
	if err != nil {
		return fmt.Sprintf("%v", vars)
	}
	return string(b)
}
