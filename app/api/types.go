package api

import (
	"context"

	"github.com/oyemello/newsflash/app/feed"
	"github.com/oyemello/newsflash/app/pipeline"
	"github.com/oyemello/newsflash/app/publish"
)

type Rebuilder interface {
	Rebuild(ctx context.Context, opts pipeline.Options) (*pipeline.Result, error)
}

type DocumentReader interface {
	Latest(ctx context.Context) ([]byte, error)
	State(ctx context.Context) (*publish.State, error)
}

// DocumentCache is the optional read-through cache in front of the store.
type DocumentCache interface {
	Get(ctx context.Context) ([]byte, bool, error)
	Set(ctx context.Context, body []byte) error
	Health(ctx context.Context) map[string]any
}

type SourceRegistry interface {
	Sources() []*feed.Source
	GetSource(sourceID string) (*feed.Source, error)
	Count() int
}

type GeneratorInterface interface {
	Run(doc *feed.Document) (string, error)
}

var (
	_ Rebuilder          = (*pipeline.Pipeline)(nil)
	_ DocumentReader     = (*publish.Publisher)(nil)
	_ GeneratorInterface = (*feed.Generator)(nil)
	_ SourceRegistry     = (*feed.Registry)(nil)
)

type Handler struct {
	rebuilder Rebuilder
	reader    DocumentReader
	cache     DocumentCache
	generator GeneratorInterface
	registry  SourceRegistry
	version   string
}
