// Package badges evaluates achievement rules over a trainer's pokedex.
// Evaluation is pure: rules read a snapshot and never touch storage.
package badges

import "time"

// Entry is one caught species in a snapshot.
type Entry struct {
	SpeciesID int
	CaughtAt  time.Time
}

// Snapshot is the read-only trainer state a rule may inspect.
type Snapshot struct {
	Entries []Entry
	Held    []string
}

// Rule pairs a badge identifier with its predicate.
type Rule struct {
	ID    string
	Check func(s *Snapshot) bool
}

// Species allowlists by elemental category, Gen 1 dex numbers.
var speciesCategories = map[string][]int{
	"bug":      {10, 11, 12, 13, 14, 15, 46, 47, 48, 49, 123, 127},
	"rock":     {74, 75, 76, 95, 138, 139, 140, 141, 142},
	"ground":   {27, 28, 50, 51, 104, 105, 111, 112},
	"water":    {7, 8, 9, 54, 55, 60, 61, 62, 72, 73, 79, 80, 86, 87, 90, 91, 98, 99, 116, 117, 118, 119, 120, 121, 129, 130, 131, 134, 138, 139, 140, 141},
	"flying":   {6, 12, 15, 16, 17, 18, 21, 22, 41, 42, 49, 83, 84, 85, 123, 130, 142, 144, 145, 146, 149},
	"electric": {25, 26, 81, 82, 100, 101, 125, 135, 145},
	"psychic":  {63, 64, 65, 79, 80, 96, 97, 102, 103, 121, 122, 124, 150, 151},
	"evolved":  {2, 3, 5, 6, 8, 9, 11, 12, 14, 15, 17, 18, 20, 22, 24, 26, 28, 30, 31, 33, 34, 36, 38, 40, 42, 44, 45, 47, 49, 51, 53, 55, 57, 59, 61, 62, 64, 65, 67, 68, 70, 71, 73, 75, 76, 78, 80, 82, 85, 87, 89, 91, 93, 94, 97, 99, 101, 103, 105, 107, 110, 112, 117, 119, 121, 130, 134, 135, 136, 139, 141, 148, 149},
}

// Rules is the fixed ordered rule table. Order matters only for the
// order newly earned badges are reported in.
var Rules = []Rule{
	{"first_catch", uniqueAtLeast(1)},
	{"novice_collector", uniqueAtLeast(10)},
	{"kanto_explorer", uniqueAtLeast(25)},
	{"rising_star", uniqueAtLeast(50)},
	{"century_club", uniqueAtLeast(100)},
	{"kanto_master", uniqueAtLeast(151)},
	{"starter_squad", hasAll(1, 4, 7)},
	{"evolution_expert", categoryAtLeast(10, "evolved")},
	{"forest_dweller", categoryAtLeast(5, "bug")},
	{"mountain_hiker", categoryAtLeast(5, "rock", "ground")},
	{"swimmer", categoryAtLeast(10, "water")},
	{"bird_watcher", categoryAtLeast(10, "flying")},
	{"electrician", categoryAtLeast(5, "electric")},
	{"psychic_master", categoryAtLeast(5, "psychic")},
	{"ghost_hunter", hasAll(92, 93, 94)},
	{"dragon_tamer", hasAll(147, 148, 149)},
	{"legendary_finder", hasAny(144, 145, 146)},
	{"the_chosen_one", hasAll(150)},
	{"hidden_myth", hasAll(151)},
	{"daily_dedicated", distinctDaysAtLeast(7)},
}

// Evaluate returns the identifiers of badges newly earned by the
// snapshot, in rule order. Badges already held are excluded up front,
// so re-evaluating an unchanged snapshot yields nothing.
func Evaluate(s *Snapshot) []string {
	held := make(map[string]bool, len(s.Held))
	for _, id := range s.Held {
		held[id] = true
	}

	var earned []string
	for _, rule := range Rules {
		if held[rule.ID] {
			continue
		}
		if rule.Check(s) {
			earned = append(earned, rule.ID)
		}
	}
	return earned
}

func (s *Snapshot) speciesSet() map[int]bool {
	set := make(map[int]bool, len(s.Entries))
	for _, e := range s.Entries {
		set[e.SpeciesID] = true
	}
	return set
}

func uniqueAtLeast(n int) func(*Snapshot) bool {
	return func(s *Snapshot) bool {
		return len(s.speciesSet()) >= n
	}
}

func hasAll(ids ...int) func(*Snapshot) bool {
	return func(s *Snapshot) bool {
		set := s.speciesSet()
		for _, id := range ids {
			if !set[id] {
				return false
			}
		}
		return true
	}
}

func hasAny(ids ...int) func(*Snapshot) bool {
	return func(s *Snapshot) bool {
		set := s.speciesSet()
		for _, id := range ids {
			if set[id] {
				return true
			}
		}
		return false
	}
}

func categoryAtLeast(n int, categories ...string) func(*Snapshot) bool {
	// Categories may overlap (rock and ground share members); the
	// allowlist union is deduped before counting.
	allowed := make(map[int]bool)
	for _, c := range categories {
		for _, id := range speciesCategories[c] {
			allowed[id] = true
		}
	}
	return func(s *Snapshot) bool {
		count := 0
		for id := range s.speciesSet() {
			if allowed[id] {
				count++
			}
		}
		return count >= n
	}
}

func distinctDaysAtLeast(n int) func(*Snapshot) bool {
	return func(s *Snapshot) bool {
		days := make(map[string]bool)
		for _, e := range s.Entries {
			days[e.CaughtAt.UTC().Format("2006-01-02")] = true
		}
		return len(days) >= n
	}
}
