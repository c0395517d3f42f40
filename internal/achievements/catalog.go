// Package achievements holds the achievement catalog and the threshold
// crossing rules used to unlock entries from it.
package achievements

// Kind is the metric an achievement is keyed on
type Kind string

const (
	// KindStreak is a single habit's consecutive-day streak
	KindStreak Kind = "streak"
	// KindTotal is the owner's lifetime completion count
	KindTotal Kind = "total_completions"
	// KindDiversity is the owner's count of active habits
	KindDiversity Kind = "diversity"
)

// Achievement is a catalog entry
type Achievement struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
	Threshold   int    `json:"threshold"`
	TokenReward int    `json:"tokenReward"`
	Icon        string `json:"icon"`
}

// catalog is ordered by kind, then ascending threshold
var catalog = []Achievement{
	{Name: "First Step", Description: "Complete your first habit", Kind: KindStreak, Threshold: 1, TokenReward: 2, Icon: "🎯"},
	{Name: "Consistency Starter", Description: "Complete a habit for 3 days in a row", Kind: KindStreak, Threshold: 3, TokenReward: 5, Icon: "🔥"},
	{Name: "Weekly Warrior", Description: "Complete a habit for 7 days in a row", Kind: KindStreak, Threshold: 7, TokenReward: 10, Icon: "⚔️"},
	{Name: "Two Week Champion", Description: "Complete a habit for 14 days in a row", Kind: KindStreak, Threshold: 14, TokenReward: 20, Icon: "🏆"},
	{Name: "Three Week Streak", Description: "Complete a habit for 21 days in a row", Kind: KindStreak, Threshold: 21, TokenReward: 30, Icon: "🎖️"},
	{Name: "Monthly Master", Description: "Complete a habit for 30 days in a row", Kind: KindStreak, Threshold: 30, TokenReward: 50, Icon: "👑"},
	{Name: "Unstoppable", Description: "Complete a habit for 50 days in a row", Kind: KindStreak, Threshold: 50, TokenReward: 100, Icon: "💪"},
	{Name: "Quarter Year", Description: "Complete a habit for 90 days in a row", Kind: KindStreak, Threshold: 90, TokenReward: 200, Icon: "🌟"},
	{Name: "Century Club", Description: "Complete a habit for 100 days in a row", Kind: KindStreak, Threshold: 100, TokenReward: 250, Icon: "💯"},
	{Name: "Half Year Hero", Description: "Complete a habit for 180 days in a row", Kind: KindStreak, Threshold: 180, TokenReward: 500, Icon: "🌟"},
	{Name: "Year Long Legend", Description: "Complete a habit for 365 days in a row", Kind: KindStreak, Threshold: 365, TokenReward: 1000, Icon: "🎖️"},

	{Name: "Getting Started", Description: "Complete 10 habits in total", Kind: KindTotal, Threshold: 10, TokenReward: 5, Icon: "🌱"},
	{Name: "Habit Builder", Description: "Complete 25 habits in total", Kind: KindTotal, Threshold: 25, TokenReward: 10, Icon: "🏗️"},
	{Name: "Dedicated", Description: "Complete 50 habits in total", Kind: KindTotal, Threshold: 50, TokenReward: 25, Icon: "💎"},
	{Name: "Committed", Description: "Complete 100 habits in total", Kind: KindTotal, Threshold: 100, TokenReward: 50, Icon: "🎯"},
	{Name: "Habit Master", Description: "Complete 250 habits in total", Kind: KindTotal, Threshold: 250, TokenReward: 100, Icon: "🧙"},
	{Name: "Habit Guru", Description: "Complete 500 habits in total", Kind: KindTotal, Threshold: 500, TokenReward: 250, Icon: "🧘"},
	{Name: "Habit Legend", Description: "Complete 1000 habits in total", Kind: KindTotal, Threshold: 1000, TokenReward: 500, Icon: "⚡"},

	{Name: "Habit Collector", Description: "Create 5 different habits", Kind: KindDiversity, Threshold: 5, TokenReward: 10, Icon: "📚"},
	{Name: "Variety Seeker", Description: "Create 10 different habits", Kind: KindDiversity, Threshold: 10, TokenReward: 20, Icon: "🎨"},
	{Name: "Renaissance Person", Description: "Create 20 different habits", Kind: KindDiversity, Threshold: 20, TokenReward: 50, Icon: "🎭"},
}

// All returns a copy of the full catalog in catalog order
func All() []Achievement {
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	return out
}

// ByKind returns the catalog entries for kind in catalog order
func ByKind(kind Kind) []Achievement {
	var out []Achievement
	for _, a := range catalog {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

// Lookup finds a catalog entry by name
func Lookup(name string) (Achievement, bool) {
	for _, a := range catalog {
		if a.Name == name {
			return a, true
		}
	}
	return Achievement{}, false
}

// TotalReward sums the token rewards of achs
func TotalReward(achs []Achievement) int {
	total := 0
	for _, a := range achs {
		total += a.TokenReward
	}
	return total
}
