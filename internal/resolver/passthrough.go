package resolver

import (
	"context"

	"streamvault-proxy-go/internal/model"
)

// Passthrough treats every source URL as already direct.
type Passthrough struct{}

func (Passthrough) Resolve(_ context.Context, q Query) (*model.ResolvedTarget, error) {
	name := FilenameFromURL(q.SourceURL)
	return &model.ResolvedTarget{
		DirectURL: q.SourceURL,
		Filename:  name,
		Title:     name,
	}, nil
}
