package render

import (
	"errors"
	"fmt"

	"docchat-cli/internal/metrics"

	"go.uber.org/zap"
)

// Options for one render call.
type Options struct {
	// Streaming marks text that is still arriving.
	Streaming bool
	// Fallback skips the structured renderer.
	Fallback bool
}

// Pipeline renders with a primary renderer and falls back to a second one
// when the first fails or panics.
type Pipeline struct {
	primary  Renderer
	fallback Renderer
	logger   *zap.Logger
	metrics  *metrics.Collector
}

type PipelineOption func(*Pipeline)

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// WithRenderers replaces the primary and fallback renderers. A nil
// argument keeps the default.
func WithRenderers(primary, fallback Renderer) PipelineOption {
	return func(p *Pipeline) {
		if primary != nil {
			p.primary = primary
		}
		if fallback != nil {
			p.fallback = fallback
		}
	}
}

func NewPipeline(opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		primary:  NewStructured(),
		fallback: NewLines(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(zap.String("component", "render"))
	return p
}

var (
	defaultPipeline = NewPipeline()
	errNoDocument   = errors.New("renderer returned no document")
)

// Render uses the default pipeline.
func Render(text string, opts Options) *Node {
	return defaultPipeline.Render(text, opts)
}

// Render never fails. When both renderers fail the text comes back as a
// single paragraph.
func (p *Pipeline) Render(text string, opts Options) *Node {
	var (
		doc *Node
		err error
	)
	if !opts.Fallback {
		doc, err = RenderSafely(p.primary, text)
		if err != nil {
			p.logger.Debug("structured render failed", zap.Error(err))
			p.metrics.RenderFallback()
		}
	}
	if doc == nil {
		doc, err = RenderSafely(p.fallback, text)
		if err != nil {
			p.logger.Warn("fallback render failed", zap.Error(err))
			doc = plainDocument(text)
		}
	}
	doc.Streaming = opts.Streaming
	return doc
}

// RenderSafely runs r and turns a panic into an error.
func RenderSafely(r Renderer, text string) (doc *Node, err error) {
	defer func() {
		if v := recover(); v != nil {
			doc, err = nil, fmt.Errorf("renderer panic: %v", v)
		}
	}()
	doc, err = r.Render(text)
	if err == nil && doc == nil {
		err = errNoDocument
	}
	if err != nil {
		doc = nil
	}
	return doc, err
}

func plainDocument(text string) *Node {
	doc := &Node{Kind: KindDocument}
	if text != "" {
		doc.append(&Node{Kind: KindParagraph, Children: []*Node{newText(text)}})
	}
	return doc
}
