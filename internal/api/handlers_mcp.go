package api

import (
	"encoding/json"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/cherrin1/remote-slack-server/domain"
)

// protocolVersion is the MCP revision this server speaks.
const protocolVersion = "2025-03-26"

// JSON-RPC 2.0 error codes used by the tool endpoint.
const (
	rpcParseError     = -32700
	rpcInvalidRequest = -32600
	rpcMethodNotFound = -32601
	rpcInvalidParams  = -32602
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func rpcOK(id json.RawMessage, result interface{}) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func rpcFail(id json.RawMessage, code int, message string) rpcResponse {
	return rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}}
}

// MCPHandler dispatches the assistant-facing method surface. The bearer
// middleware has already resolved the caller; the caller's underlying Slack
// token is what tool calls go out with.
func (a *API) MCPHandler(c echo.Context) error {
	user, _ := c.Get(userContextKey).(*domain.UserRecord)

	var req rpcRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
		return c.JSON(http.StatusOK, rpcFail(nil, rpcParseError, "invalid JSON"))
	}
	if req.Method == "" {
		return c.JSON(http.StatusOK, rpcFail(req.ID, rpcInvalidRequest, "method is required"))
	}

	switch req.Method {
	case "initialize":
		return c.JSON(http.StatusOK, rpcOK(req.ID, map[string]interface{}{
			"protocolVersion": protocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    serverName,
				"version": serverVersion,
			},
		}))

	case "ping":
		return c.JSON(http.StatusOK, rpcOK(req.ID, map[string]interface{}{}))

	case "tools/list":
		return c.JSON(http.StatusOK, rpcOK(req.ID, mcp.ListToolsResult{
			Tools: a.dispatcher.Tools(),
		}))

	case "tools/call":
		var params struct {
			Name      string                 `json:"name"`
			Arguments map[string]interface{} `json:"arguments"`
		}
		if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
			return c.JSON(http.StatusOK, rpcFail(req.ID, rpcInvalidParams, "params.name is required"))
		}
		result := a.dispatcher.CallTool(c.Request().Context(), user.PlatformToken, params.Name, params.Arguments)
		return c.JSON(http.StatusOK, rpcOK(req.ID, result))

	default:
		return c.JSON(http.StatusOK, rpcFail(req.ID, rpcMethodNotFound, "unknown method: "+req.Method))
	}
}
