// Package mcp exposes the bill index to MCP clients as JSON-RPC tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/satishpasalait/RAGAIUSLawBills/internal/apperr"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/index"
	"github.com/satishpasalait/RAGAIUSLawBills/internal/retrieval"
)

const (
	ToolAsk    = "bills_ask"
	ToolSearch = "bills_search"

	protocolVersion = "2024-11-05"
	maxLimit        = retrieval.MaxTopK
)

type Retriever interface {
	Search(ctx context.Context, question string, k int) ([]index.Match, error)
	Ask(ctx context.Context, req retrieval.AskRequest) (*retrieval.AskResponse, error)
	DefaultTopK() int
}

type Handler struct {
	retriever Retriever
	version   string
}

func NewHandler(r Retriever, version string) *Handler {
	return &Handler{retriever: r, version: version}
}

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      interface{}     `json:"id"`
}

type JSONRPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type CallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

type AskArgs struct {
	Question string `json:"question"`
	TopK     *int   `json:"top_k,omitempty"`
}

type SearchArgs struct {
	Query string `json:"query"`
	Limit *int   `json:"limit,omitempty"`
}

type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema interface{} `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

type ToolResult struct {
	Content []ToolContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

type ToolContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	ErrParse          = -32700
	ErrInvalidRequest = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603
)

var errInvalidArgs = errors.New("invalid arguments")

var tools = []Tool{
	{
		Name: ToolAsk,
		Description: `Answers a question about US bills using only the indexed bill text. Returns the answer followed by the bill chunks it was grounded on.

USAGE EXAMPLE:
bills_ask(question="What does the Clean Water bill require?", top_k=5)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"question": map[string]string{
					"type":        "string",
					"description": "The question to answer",
				},
				"top_k": map[string]interface{}{
					"type":        "integer",
					"description": "Number of chunks to retrieve as context.",
					"minimum":     1,
					"maximum":     maxLimit,
				},
			},
			"required": []string{"question"},
		},
	},
	{
		Name: ToolSearch,
		Description: `Finds the bill chunks closest to a query without generating an answer. Lower distance means closer.

USAGE EXAMPLE:
bills_search(query="grazing payments", limit=10)`,
		InputSchema: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"query": map[string]string{
					"type":        "string",
					"description": "The search query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Max results to return.",
					"minimum":     1,
					"maximum":     maxLimit,
				},
			},
			"required": []string{"query"},
		},
	},
}

// processRequest returns nil for notifications.
func (h *Handler) processRequest(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	switch req.Method {
	case "initialize":
		return result(req.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    "billrag-mcp",
				"version": h.version,
			},
		})
	case "notifications/initialized":
		return nil
	case "tools/list":
		return result(req.ID, ListToolsResult{Tools: tools})
	case "tools/call":
		return h.callTool(ctx, req)
	}

	slog.WarnContext(ctx, "unknown jsonrpc method", "method", req.Method)
	return errorResponse(req.ID, ErrMethodNotFound, "Method not found")
}

func (h *Handler) callTool(ctx context.Context, req JSONRPCRequest) *JSONRPCResponse {
	var params CallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		slog.WarnContext(ctx, "invalid params structure", "error", err)
		return errorResponse(req.ID, ErrInvalidParams, "Invalid params")
	}

	var (
		text string
		err  error
	)
	switch params.Name {
	case ToolAsk:
		text, err = h.ask(ctx, params.Arguments)
	case ToolSearch:
		text, err = h.search(ctx, params.Arguments)
	default:
		slog.WarnContext(ctx, "tool not found", "tool", params.Name)
		return errorResponse(req.ID, ErrMethodNotFound, "Method not found: "+params.Name)
	}

	if err != nil {
		if errors.Is(err, errInvalidArgs) || errors.Is(err, apperr.ErrInvalidRequest) {
			return errorResponse(req.ID, ErrInvalidParams, err.Error())
		}
		slog.ErrorContext(ctx, "tool execution failed", "tool", params.Name, "error", err)
		return result(req.ID, ToolResult{
			Content: []ToolContent{{Type: "text", Text: "Error: " + err.Error()}},
			IsError: true,
		})
	}

	slog.InfoContext(ctx, "tool execution completed", "tool", params.Name)
	return result(req.ID, ToolResult{Content: []ToolContent{{Type: "text", Text: text}}})
}

func (h *Handler) ask(ctx context.Context, raw json.RawMessage) (string, error) {
	var args AskArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	if strings.TrimSpace(args.Question) == "" {
		return "", fmt.Errorf("%w: question is required", errInvalidArgs)
	}
	if args.TopK != nil && *args.TopK > maxLimit {
		return "", fmt.Errorf("%w: top_k must be at most %d", errInvalidArgs, maxLimit)
	}

	resp, err := h.retriever.Ask(ctx, retrieval.AskRequest{Question: args.Question, TopK: args.TopK})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(resp.Answer)
	if len(resp.Sources) > 0 {
		b.WriteString("\n\nSources:\n")
		for _, s := range resp.Sources {
			fmt.Fprintf(&b, "- %s (%s, chunk %d, distance %.4f)\n", s.Title, s.BillID, s.ChunkIndex, s.Score)
		}
	}
	return b.String(), nil
}

func (h *Handler) search(ctx context.Context, raw json.RawMessage) (string, error) {
	var args SearchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", errInvalidArgs, err)
	}
	if strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("%w: query is required", errInvalidArgs)
	}
	limit := h.retriever.DefaultTopK()
	if args.Limit != nil {
		limit = *args.Limit
	}
	if limit < 1 || limit > maxLimit {
		return "", fmt.Errorf("%w: limit must be between 1 and %d", errInvalidArgs, maxLimit)
	}

	matches, err := h.retriever.Search(ctx, args.Query, limit)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, m := range matches {
		fmt.Fprintf(&b, "Result %d (Distance: %.4f):\n", i+1, m.Distance)
		fmt.Fprintf(&b, "Bill: %s\nTitle: %s\nChunk: %d\n", m.Metadata.DocumentID, m.Metadata.Title, m.Metadata.ChunkIndex)
		fmt.Fprintf(&b, "Content:\n%s\n\n---\n", m.Text)
	}
	return b.String(), nil
}

func result(id interface{}, v interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: v}
}

func errorResponse(id interface{}, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slog.InfoContext(ctx, "mcp request received", "method", r.Method, "path", r.URL.Path)

	var req JSONRPCRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.write(ctx, w, errorResponse(nil, ErrParse, "Parse error"))
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		h.write(ctx, w, errorResponse(req.ID, ErrInvalidRequest, "Invalid Request"))
		return
	}

	resp := h.processRequest(ctx, req)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	h.write(ctx, w, resp)
}

// write always answers 200; JSON-RPC errors travel in the body.
func (h *Handler) write(ctx context.Context, w http.ResponseWriter, resp *JSONRPCResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.ErrorContext(ctx, "failed to encode response", "error", err)
	}
}
