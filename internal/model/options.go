package model

type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Multiplier is the weight contribution of one enabled boost option.
func (i Intensity) Multiplier() float64 {
	switch i {
	case IntensityHigh:
		return 6.0
	case IntensityMedium:
		return 3.0
	default:
		return 1.5
	}
}

// WildcardPercent is the share of the filter intersection injected as
// wildcards.
func (i Intensity) WildcardPercent() float64 {
	switch i {
	case IntensityHigh:
		return 0.20
	case IntensityMedium:
		return 0.10
	default:
		return 0.05
	}
}

type OptionToggle struct {
	Enabled   bool      `json:"enabled"`
	Intensity Intensity `json:"intensity"`
}

// DeckOptions is the host-controlled weighting configuration for a room.
type DeckOptions struct {
	Wildcards          OptionToggle `json:"wildcards"`
	BoostNewReleases   OptionToggle `json:"boost_new_releases"`
	BoostRecentlyAdded OptionToggle `json:"boost_recently_added"`
	BoostLikedCards    OptionToggle `json:"boost_liked_cards"`
	DemotePassedCards  OptionToggle `json:"demote_passed_cards"`
}

func DefaultDeckOptions() DeckOptions {
	return DeckOptions{
		Wildcards:          OptionToggle{Enabled: false, Intensity: IntensityMedium},
		BoostNewReleases:   OptionToggle{Enabled: false, Intensity: IntensityMedium},
		BoostRecentlyAdded: OptionToggle{Enabled: false, Intensity: IntensityMedium},
		BoostLikedCards:    OptionToggle{Enabled: true, Intensity: IntensityMedium},
		DemotePassedCards:  OptionToggle{Enabled: true, Intensity: IntensityMedium},
	}
}
