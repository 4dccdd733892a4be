package panels

import (
	"fmt"

	"box-annotator/internal/app"
	"box-annotator/internal/imaging"

	"fyne.io/fyne/v2"
	fynecanvas "fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
)

const (
	thumbWidth  = 96
	thumbHeight = 64
)

// ImageList shows the dataset in review order with a thumbnail, the image
// name, and its uncertainty score. Selecting a row activates that image.
type ImageList struct {
	state   *app.State
	cache   *imaging.Cache
	list    *widget.List
	content fyne.CanvasObject
}

// NewImageList creates the dataset list and subscribes it to reloads.
func NewImageList(state *app.State, cache *imaging.Cache) *ImageList {
	il := &ImageList{state: state, cache: cache}

	il.list = widget.NewList(
		func() int { return len(state.Images()) },
		func() fyne.CanvasObject {
			thumb := fynecanvas.NewImageFromImage(nil)
			thumb.FillMode = fynecanvas.ImageFillContain
			thumb.SetMinSize(fyne.NewSize(thumbWidth, thumbHeight))
			return container.NewHBox(thumb, widget.NewLabel(""))
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			images := state.Images()
			if id >= len(images) {
				return
			}
			img := images[id]
			row := obj.(*fyne.Container)
			thumb := row.Objects[0].(*fynecanvas.Image)
			label := row.Objects[1].(*widget.Label)

			if t, err := cache.Thumbnail(img.Filepath, thumbWidth, thumbHeight); err == nil {
				thumb.Image = t
				thumb.Refresh()
			}
			label.SetText(describeImage(img.ID(), img.Uncertainty(), img.FullyAnnotated))
		},
	)
	il.list.OnSelected = func(id widget.ListItemID) {
		images := state.Images()
		if id < len(images) {
			state.SelectImage(images[id].ID())
		}
	}
	il.content = container.NewBorder(widget.NewLabel("Images"), nil, nil, nil, il.list)

	state.On(app.EventImagesLoaded, func(any) { il.list.Refresh() })
	state.On(app.EventSaveResult, func(any) { il.list.Refresh() })
	return il
}

// Container returns the panel's root object.
func (il *ImageList) Container() fyne.CanvasObject {
	return il.content
}

func describeImage(id string, uncertainty float64, done bool) string {
	mark := ""
	if done {
		mark = " *"
	}
	if uncertainty > 0 {
		return fmt.Sprintf("%s (%.2f)%s", id, uncertainty, mark)
	}
	return id + mark
}
