package localizer

import (
	"context"

	"github.com/rizkia-p/wayfindr/pkg/datastructure"
	"github.com/rizkia-p/wayfindr/pkg/util"
	"go.uber.org/zap"
)

// NavigationThreshold similarity bar for live navigation frames.
// a clean scene uses the high bar; people in the frame depress the achievable
// similarity, so the bar relaxes proportionally to the strongest detection.
// waypoints immediately preceding a turn get a stricter bar so the turn
// instruction cannot fire early.
func (l *Localizer) NavigationThreshold(detections []float64, beforeTurn bool) float64 {
	threshold := l.cfg.CleanSceneThreshold

	maxConf := 0.0
	for _, d := range detections {
		if d > maxConf {
			maxConf = d
		}
	}
	threshold -= l.cfg.CrowdedRelaxation * util.Clamp01(maxConf)

	if beforeTurn {
		threshold += l.cfg.PreTurnBonus
	}
	return util.Clamp01(threshold)
}

// NavigationEmbed embedding + dynamic threshold for one live frame.
// when people are detected the frame is re-encoded with person inpainting so
// it stays comparable against the empty reference recording. detector failure
// degrades to the clean-scene path.
func (l *Localizer) NavigationEmbed(ctx context.Context, frame []byte, beforeTurn bool) (datastructure.Vector, float64) {
	count, detections, err := l.embedder.DetectPersons(ctx, frame)
	if err != nil {
		l.log.Warn("person detection failed, assuming clean scene", zap.Error(err))
		count, detections = 0, nil
	}

	vec, err := l.embedder.EncodeNavigation(ctx, frame, count > 0)
	if err != nil {
		l.log.Warn("navigation embedding failed, substituting zero vector", zap.Error(err))
		vec = datastructure.ZeroVector(0)
	}

	return vec, l.NavigationThreshold(detections, beforeTurn)
}
