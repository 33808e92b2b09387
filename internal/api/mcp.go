package api

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"

	"github.com/korjavin/platecal/internal/nutrition"
)

// Tool names accepted by CallTool.
const (
	ToolSearchFood  = "search_food"
	ToolPredictFood = "predict_food"
)

type searchFoodParams struct {
	Query string `json:"query" description:"Food name to look up"`
}

type predictFoodParams struct {
	ImageBase64 string `json:"image_base64" description:"Base64 encoded food photo"`
}

// CallTool exposes search and predict as MCP tools. The request body is a
// CallToolRequest; the result carries the nutrition record as JSON text.
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req protocol.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return
	}

	var (
		rec nutrition.Record
		err error
	)
	switch req.Name {
	case ToolSearchFood:
		var p searchFoodParams
		if err := extractParams(&req, &p); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		q := strings.TrimSpace(p.Query)
		if q == "" {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "No query provided"})
			return
		}
		rec, err = h.Service.Search(r.Context(), q)
	case ToolPredictFood:
		var p predictFoodParams
		if err := extractParams(&req, &p); err != nil {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		image, derr := base64.StdEncoding.DecodeString(p.ImageBase64)
		if derr != nil || len(image) == 0 {
			h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "image_base64 must be non-empty base64"})
			return
		}
		rec, err = h.Service.Predict(r.Context(), image)
	default:
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: fmt.Sprintf("unknown tool: %s", req.Name)})
		return
	}
	if err != nil {
		h.writeFailure(w, r, req.Name, err)
		return
	}

	result, err := toolResult(rec)
	if err != nil {
		h.writeFailure(w, r, req.Name, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func extractParams(req *protocol.CallToolRequest, target any) error {
	b, err := json.Marshal(req.Arguments)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	if err := json.Unmarshal(b, target); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func toolResult(data any) (*protocol.CallToolResult, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(b),
			},
		},
	}, nil
}
