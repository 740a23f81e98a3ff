package models

// Achievement labels, in the order they are usually unlocked
const (
	AchievementFirstSteps = "First Steps! 🎉"
	AchievementExplorer   = "Explorer! 🗺️"
)

// Celebration is the visual effect shown when an achievement unlocks
type Celebration string

const (
	CelebrateBalloons Celebration = "balloons"
	CelebrateSnow     Celebration = "snow"
)

// CelebrationFor returns the effect for an achievement
func CelebrationFor(achievement string) Celebration {
	switch achievement {
	case AchievementFirstSteps:
		return CelebrateBalloons
	case AchievementExplorer:
		return CelebrateSnow
	default:
		return ""
	}
}
