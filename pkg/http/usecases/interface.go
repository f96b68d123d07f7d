package usecases

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
)

type SpatialIndex interface {
	SearchWithinRadius(x, y, radius float64) []datastructure.Node
	Nearest(x, y float64) (datastructure.Node, bool)
}

type Localizer interface {
	Localize(ctx context.Context, image []byte) (datastructure.LocationMatch, bool, error)
	LocalizeMulti(ctx context.Context, images [][]byte) (datastructure.LocationMatch, bool, error)
	LocalizeEnhanced(ctx context.Context, image []byte) (datastructure.LocationMatch, bool, error)
}
