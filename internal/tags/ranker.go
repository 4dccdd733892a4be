// Package tags ranks annotation labels by frequency and maps the most common
// ones to single-key shortcuts.
package tags

import (
	"sort"
)

// shortcutKeys maps ranked positions 0..9 to keyboard keys.
var shortcutKeys = []rune{'1', '2', '3', '4', '5', '6', '7', '8', '9', '0'}

// Entry is one ranked label with its occurrence count.
type Entry struct {
	Label string
	Count int
}

// Ranker holds the dataset-wide label frequency table and the currently
// selected tag.
type Ranker struct {
	ranked      []Entry
	selectedTag string
}

// NewRanker returns an empty ranker with no selection.
func NewRanker() *Ranker {
	return &Ranker{}
}

// Build replaces the frequency table from all labels across the dataset.
// Empty labels are excluded. Ordering is descending by count with ties broken
// by first appearance, so the shortcut assignment is stable between rebuilds
// of the same data.
func (r *Ranker) Build(labels []string) {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	var order []string

	for i, label := range labels {
		if label == "" {
			continue
		}
		if _, ok := counts[label]; !ok {
			firstSeen[label] = i
			order = append(order, label)
		}
		counts[label]++
	}

	ranked := make([]Entry, 0, len(order))
	for _, label := range order {
		ranked = append(ranked, Entry{Label: label, Count: counts[label]})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return firstSeen[ranked[i].Label] < firstSeen[ranked[j].Label]
	})
	r.ranked = ranked
}

// Ranked returns the full frequency table, most common first.
func (r *Ranker) Ranked() []Entry {
	return append([]Entry(nil), r.ranked...)
}

// Top10 returns at most the ten most common labels, in shortcut order.
func (r *Ranker) Top10() []Entry {
	n := len(r.ranked)
	if n > 10 {
		n = 10
	}
	return append([]Entry(nil), r.ranked[:n]...)
}

// KeyFor returns the shortcut key for a ranked position in the top ten, or 0
// when the position has no key.
func KeyFor(position int) rune {
	if position < 0 || position >= len(shortcutKeys) {
		return 0
	}
	return shortcutKeys[position]
}

// HandleKey resolves a digit key press to its top-ten label and toggles the
// selection. Keys outside '0'-'9' and positions with no ranked label are
// ignored. It returns the selected tag after the press ("" when cleared or
// ignored-while-unselected).
func (r *Ranker) HandleKey(key rune) string {
	position := -1
	switch {
	case key >= '1' && key <= '9':
		position = int(key - '1')
	case key == '0':
		position = 9
	default:
		return r.selectedTag
	}
	if position >= len(r.ranked) {
		return r.selectedTag
	}
	r.SelectTag(r.ranked[position].Label)
	return r.selectedTag
}

// SelectTag toggles the selection: selecting the current tag clears it.
func (r *Ranker) SelectTag(label string) {
	if label == r.selectedTag {
		r.selectedTag = ""
		return
	}
	r.selectedTag = label
}

// SelectedTag returns the current selection, "" when none.
func (r *Ranker) SelectedTag() string {
	return r.selectedTag
}

// ClearSelection drops the current selection.
func (r *Ranker) ClearSelection() {
	r.selectedTag = ""
}
