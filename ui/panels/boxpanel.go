package panels

import (
	"fmt"

	"box-annotator/internal/annotation"
	"box-annotator/internal/app"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

// BoxPanel lists the active session's boxes and exposes verify, reject, and
// relabel actions for the selected row.
type BoxPanel struct {
	state    *app.State
	list     *widget.List
	selected int
	content  fyne.CanvasObject

	// OnRelabel is called with the selected box when the relabel button is
	// pressed; the window owns the entry dialog and resolves the box by
	// value when it confirms.
	OnRelabel func(box annotation.BoundingBox)
}

// NewBoxPanel creates the box panel and subscribes it to session changes.
func NewBoxPanel(state *app.State) *BoxPanel {
	bp := &BoxPanel{state: state, selected: -1}

	bp.list = widget.NewList(
		func() int { return len(state.Boxes()) },
		func() fyne.CanvasObject { return widget.NewLabel("") },
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			boxes := state.Boxes()
			if id >= len(boxes) {
				return
			}
			obj.(*widget.Label).SetText(describeBox(boxes[id]))
		},
	)
	bp.list.OnSelected = func(id widget.ListItemID) { bp.selected = id }
	bp.list.OnUnselected = func(widget.ListItemID) { bp.selected = -1 }

	verifyBtn := widget.NewButton("Verify", func() {
		if bp.selected >= 0 {
			state.VerifyBox(bp.selected)
		}
	})
	rejectBtn := widget.NewButton("Reject", func() {
		if bp.selected >= 0 {
			state.RejectBox(bp.selected)
			bp.list.UnselectAll()
		}
	})
	relabelBtn := widget.NewButton("Relabel", func() {
		boxes := state.Boxes()
		if bp.selected >= 0 && bp.selected < len(boxes) && bp.OnRelabel != nil {
			bp.OnRelabel(boxes[bp.selected])
		}
	})

	actions := container.NewHBox(verifyBtn, rejectBtn, relabelBtn)
	bp.content = container.NewBorder(widget.NewLabel("Boxes"), actions, nil, nil, bp.list)

	state.On(app.EventSessionChanged, func(any) { bp.list.Refresh() })
	return bp
}

// Container returns the panel's root object.
func (bp *BoxPanel) Container() fyne.CanvasObject {
	return bp.content
}

// describeBox formats one list row: label, provenance, and confidence for
// model proposals.
func describeBox(b annotation.BoundingBox) string {
	label := b.Label
	if label == "" {
		label = "(unlabeled)"
	}
	if !b.Source.IsAI() {
		return label
	}
	mark := " ?"
	if b.Verified {
		mark = " ok"
	}
	return fmt.Sprintf("%s %.0f%%%s [%s]", label, b.Confidence*100, mark, b.ModelID)
}
