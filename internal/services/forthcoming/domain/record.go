package domain

import (
	"cmp"
	"slices"

	"golang.org/x/text/message"
)

// RecordItem is the item granted at the end of a sequence, listing every
// companion the actor has taken.
type RecordItem struct {
	Name  string   `json:"name"`
	Lore  []string `json:"lore"`
	Total int      `json:"total"`
}

type recordLine struct {
	key   VictimKey
	count int
}

// BuildRecordItem renders a tally through printer. Lines are sorted by
// companion name, then owner. Keys that no longer parse are skipped.
func BuildRecordItem(printer *message.Printer, tally Tally) RecordItem {
	lines := make([]recordLine, 0, len(tally))
	for raw, count := range tally {
		key, err := ParseVictimKey(raw)
		if err != nil {
			continue
		}
		lines = append(lines, recordLine{key: key, count: count})
	}
	slices.SortFunc(lines, func(a, b recordLine) int {
		return cmp.Or(cmp.Compare(a.key.Name, b.key.Name), cmp.Compare(a.key.Owner, b.key.Owner))
	})

	item := RecordItem{Name: printer.Sprintf("narrative.record.name")}
	for _, line := range lines {
		item.Lore = append(item.Lore, printer.Sprintf("narrative.record.line", line.key.Name, line.key.Owner, line.count))
		item.Total += line.count
	}
	item.Lore = append(item.Lore, printer.Sprintf("narrative.record.total", item.Total))
	return item
}
