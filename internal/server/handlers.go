package server

import (
	"encoding/json"
	"fmt"

	"github.com/ironsheep/image-preprocess/internal/batch"
	"github.com/ironsheep/image-preprocess/internal/imaging"
	"github.com/ironsheep/image-preprocess/internal/preprocess"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "image_load", "image_preprocess").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(params.Name, params.Arguments)
	if err != nil {
		s.logger.WithField("tool", params.Name).WithError(err).Warn("tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "image_is_image":
		return s.handleImageIsImage(args)
	case "image_load":
		return s.handleImageLoad(args)
	case "image_expand":
		return s.handleImageExpand(args)
	case "image_preprocess":
		return s.handleImagePreprocess(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

type pathArgs struct {
	Path string `json:"path"`
}

func (a pathArgs) validate() error {
	if a.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

// IsImageResult is the result of image_is_image.
type IsImageResult struct {
	Path    string `json:"path"`
	IsImage bool   `json:"is_image"`
	Slide   bool   `json:"slide_extension"`
}

func (s *Server) handleImageIsImage(args json.RawMessage) (interface{}, error) {
	var a pathArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	loader := imaging.NewLoader(s.params.SVSSlideLevel, s.logger)
	return &IsImageResult{
		Path:    a.Path,
		IsImage: loader.IsImage(a.Path),
		Slide:   imaging.IsSlidePath(a.Path),
	}, nil
}

type imageLoadArgs struct {
	Path  string `json:"path"`
	Level *int   `json:"svs_slide_level,omitempty"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}
	level := s.params.SVSSlideLevel
	if a.Level != nil {
		level = *a.Level
	}
	return imaging.Inspect(a.Path, level)
}

type imageExpandArgs struct {
	Files []string `json:"files"`
}

// ExpandResult is the result of image_expand.
type ExpandResult struct {
	Paths []string `json:"paths"`
	Count int      `json:"count"`
}

func (s *Server) handleImageExpand(args json.RawMessage) (interface{}, error) {
	var a imageExpandArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	loader := imaging.NewLoader(s.params.SVSSlideLevel, s.logger)
	paths, err := batch.NewExpander(loader.IsImage, s.logger).Expand(a.Files)
	if err != nil {
		return nil, err
	}
	return &ExpandResult{Paths: paths, Count: len(paths)}, nil
}

type imagePreprocessArgs struct {
	Path         string  `json:"path"`
	Methods      *string `json:"methods,omitempty"`
	OutputFormat *string `json:"output_format,omitempty"`
	OutputDir    string  `json:"output_dir,omitempty"`
	ReplaceDir   string  `json:"replace_dir,omitempty"`
	MaxScaledDim *int    `json:"max_scaled_dim,omitempty"`
	GaussLevel   *int    `json:"gauss_lvl,omitempty"`
	Level        *int    `json:"svs_slide_level,omitempty"`
}

// PreprocessResult is the result of image_preprocess. Format is the codec
// that wrote Output, or empty for a raw sample dump.
type PreprocessResult struct {
	Input   string   `json:"input"`
	Output  string   `json:"output"`
	Format  string   `json:"format"`
	Methods []string `json:"methods"`
}

func (s *Server) handleImagePreprocess(args json.RawMessage) (interface{}, error) {
	var a imagePreprocessArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if err := (pathArgs{Path: a.Path}).validate(); err != nil {
		return nil, err
	}

	p := s.params
	if a.Methods != nil {
		p.Methods = *a.Methods
	}
	if a.OutputFormat != nil {
		p.OutputFormat = *a.OutputFormat
	}
	if a.MaxScaledDim != nil {
		p.MaxScaledDim = *a.MaxScaledDim
	}
	if a.GaussLevel != nil {
		p.GaussLevel = *a.GaussLevel
	}
	if a.Level != nil {
		p.SVSSlideLevel = *a.Level
	}
	// Previews would corrupt the protocol stream on stdout.
	p.DisplayImage = false

	d, err := preprocess.New(preprocess.Options{
		Params:     p,
		OutputDir:  a.OutputDir,
		ReplaceDir: a.ReplaceDir,
	}, s.logger)
	if err != nil {
		return nil, err
	}
	res, err := d.ProcessOne(a.Path)
	if err != nil {
		return nil, err
	}

	return &PreprocessResult{
		Input:   a.Path,
		Output:  res.Output,
		Format:  res.Encoding,
		Methods: d.Chain().Names(),
	}, nil
}
