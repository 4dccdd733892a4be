// Package panels provides the side panels for the main window.
package panels

import (
	"fmt"

	"box-annotator/internal/app"
	"box-annotator/internal/tags"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// TagPanel shows the ten most frequent labels with their digit shortcuts.
// Clicking a row toggles the tag selection, mirroring the keyboard path.
type TagPanel struct {
	state   *app.State
	title   *widget.Label
	rows    *fyne.Container
	content fyne.CanvasObject
}

// NewTagPanel creates the tag panel and subscribes it to state changes.
func NewTagPanel(state *app.State) *TagPanel {
	tp := &TagPanel{
		state: state,
		title: widget.NewLabel("Tags"),
		rows:  container.NewVBox(),
	}
	tp.content = container.NewBorder(tp.title, nil, nil, nil, container.NewVScroll(tp.rows))

	state.On(app.EventImagesLoaded, func(any) { tp.rebuild() })
	state.On(app.EventSaveResult, func(any) { tp.rebuild() })
	state.On(app.EventTagChanged, func(any) { tp.rebuild() })

	tp.rebuild()
	return tp
}

// Container returns the panel's root object.
func (tp *TagPanel) Container() fyne.CanvasObject {
	return tp.content
}

func (tp *TagPanel) rebuild() {
	entries := tp.state.TopTags()
	selected := tp.state.SelectedTag()

	tp.rows.Objects = nil
	for i, e := range entries {
		label := e.Label
		key := tags.KeyFor(i)
		text := fmt.Sprintf("[%c] %s (%d)", key, label, e.Count)
		btn := widget.NewButton(text, func() {
			tp.state.SelectTag(label)
		})
		if label == selected {
			btn.Importance = widget.HighImportance
		}
		tp.rows.Add(btn)
	}
	if len(entries) == 0 {
		tp.rows.Add(widget.NewLabel("No labels yet"))
	}
	tp.rows.Refresh()
}
