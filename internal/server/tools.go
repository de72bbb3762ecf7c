package server

import (
	"strings"

	"github.com/ironsheep/image-preprocess/internal/output"
	"github.com/ironsheep/image-preprocess/internal/transform"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "image_is_image",
			Description: "Report whether a file decodes as a raster image or a multi-resolution slide. Never fails; unreadable or missing files report false.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_load",
			Description: "Inspect an image or slide without decoding its pixels: dimensions, channels, format and, for slides, the resolution levels and properties.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"svs_slide_level": map[string]interface{}{
						"type":        "integer",
						"description": "Slide resolution level to report on (0 is full resolution). Defaults to the configured level.",
						"minimum":     0,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "image_expand",
			Description: "Resolve arguments into image paths. Images pass through; any other file is read as a list of image paths, one per line.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"files": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Image paths or list files",
						"minItems":    1,
					},
				},
				"required": []string{"files"},
			},
		},
		{
			Name:        "image_preprocess",
			Description: "Load an image, apply the transform chain and write the result. Slide samples are always written raw, under the requested extension; the result format is empty for raw output.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"methods": map[string]interface{}{
						"type":        "string",
						"description": "Comma-separated transforms applied in order: " + strings.Join(transform.Registered, ", ") + ". Defaults to the configured methods.",
					},
					"output_format": map[string]interface{}{
						"type":        "string",
						"enum":        output.Formats,
						"description": "Output codec. Omit for a raw dump.",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory receiving the result. Default: " + output.DefaultDir,
					},
					"replace_dir": map[string]interface{}{
						"type":        "string",
						"description": "Input root whose subdirectory structure is kept under output_dir",
					},
					"max_scaled_dim": map[string]interface{}{
						"type":        "integer",
						"description": "Canvas side used by rescale",
						"minimum":     1,
					},
					"gauss_lvl": map[string]interface{}{
						"type":        "integer",
						"description": "Odd Gaussian kernel size, also used as sigma",
						"minimum":     1,
					},
					"svs_slide_level": map[string]interface{}{
						"type":        "integer",
						"description": "Slide resolution level to read",
						"minimum":     0,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
