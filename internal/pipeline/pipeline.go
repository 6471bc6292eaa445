package pipeline

import (
	"log/slog"

	"github.com/IshaanNene/fetgoat/internal/types"
)

// Middleware processes an item and returns the (possibly modified) item.
// Return nil to drop the item from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms an item. Return nil to drop the item.
	Process(item *types.Item) (*types.Item, error)
}

// Pipeline chains middleware over exported entities.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates an empty Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Options selects the built-in stages Build assembles.
type Options struct {
	// Kinds keeps only items of these kinds. Empty keeps all.
	Kinds []string
	// Fields keeps only these fields. Empty keeps all.
	Fields []string
	// Required drops items missing any of these fields.
	Required []string
	// PlainText strips markup from the HTML-bearing fields.
	PlainText bool
	// Redact masks contact details found in free-text fields.
	Redact bool
	// WordCount adds <field>_word_count for the free-text fields.
	WordCount bool
}

// Build returns a pipeline with the stages opts asks for. Trimming and
// de-duplication by kind and id always run.
func Build(opts Options, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(NewDedupMiddleware())
	if len(opts.Kinds) > 0 {
		p.Use(NewKindFilterMiddleware(opts.Kinds...))
	}
	if len(opts.Required) > 0 {
		p.Use(&RequiredFieldsMiddleware{Fields: opts.Required})
	}
	if opts.WordCount {
		p.Use(NewWordCountMiddleware(TextFields))
	}
	if opts.PlainText {
		p.Use(NewHTMLSanitizeMiddleware(HTMLFields...))
	}
	if opts.Redact {
		p.Use(NewPIIRedactMiddleware(TextFields, logger))
	}
	if len(opts.Fields) > 0 {
		p.Use(NewFieldFilterMiddleware(opts.Fields...))
	}
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the item through all middleware in order.
func (p *Pipeline) Process(item *types.Item) (*types.Item, error) {
	current := item

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Item:  current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("item dropped", "stage", mw.Name(), "kind", item.Kind, "id", item.ID)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Run processes a batch and returns the surviving items in order. The
// first stage error aborts the batch.
func (p *Pipeline) Run(items []*types.Item) ([]*types.Item, error) {
	out := make([]*types.Item, 0, len(items))
	for _, item := range items {
		result, err := p.Process(item)
		if err != nil {
			return nil, err
		}
		if result != nil {
			out = append(out, result)
		}
	}
	if dropped := len(items) - len(out); dropped > 0 {
		p.logger.Info("items dropped by pipeline", "dropped", dropped, "kept", len(out))
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
