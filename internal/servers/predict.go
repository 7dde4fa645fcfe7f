package servers

import (
	"context"
	"fmt"
	"slices"
)

// Predictor estimates the closing bid of an auction from its features. The
// trained model lives outside this repository and is plugged in here.
type Predictor interface {
	Predict(ctx context.Context, features map[string]any) (float64, error)
}

var vocationMultipliers = map[string]float64{
	"knight":   1.0,
	"paladin":  1.1,
	"sorcerer": 1.2,
	"druid":    1.15,
}

var popularServers = []string{"Antica", "Secura", "Amera", "Dolera"}

// HeuristicPredictor is the rule of thumb used when no model is available.
type HeuristicPredictor struct{}

func int64Feature(features map[string]any, key string) (int64, error) {
	switch v := features[key].(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("feature %s has unexpected type %T", key, v)
	}
}

func (HeuristicPredictor) Predict(ctx context.Context, features map[string]any) (float64, error) {
	get := map[string]int64{}
	for _, key := range []string{
		"level", "axe_fighting", "club_fighting", "sword_fighting", "distance_fighting",
		"magic_level", "shielding", "mounts", "outfits", "gold", "achievement_points",
		"is_transfer_available",
	} {
		v, err := int64Feature(features, key)
		if err != nil {
			return 0, err
		}
		get[key] = v
	}

	level := float64(get["level"])
	var value float64
	switch {
	case level <= 50:
		value = level * 10
	case level <= 100:
		value = 500 + (level-50)*25
	case level <= 200:
		value = 1750 + (level-100)*50
	case level <= 400:
		value = 6750 + (level-200)*100
	default:
		value = 26750 + (level-400)*150
	}

	vocation, _ := features["vocation"].(string)
	multiplier, ok := vocationMultipliers[vocation]
	if !ok {
		multiplier = 1
	}
	value *= multiplier

	primary := max(get["axe_fighting"], get["club_fighting"], get["sword_fighting"], get["distance_fighting"])
	value += float64(primary) * 25
	value += float64(get["magic_level"]) * 40
	value += float64(get["shielding"]) * 15

	value += float64(get["mounts"]) * 100
	value += float64(get["outfits"]) * 50
	value += float64(get["gold"]) * 0.02
	value += float64(get["achievement_points"]) * 5

	if get["is_transfer_available"] != 0 {
		value *= 1.3
	}
	server, _ := features["server"].(string)
	if slices.Contains(popularServers, server) {
		value *= 1.1
	}

	// whole coins, never below the minimum bid
	return max(float64(int64(value)), 100), nil
}
