// Package mainwindow provides the main application window.
package mainwindow

import (
	"context"
	"fmt"
	"log/slog"

	"box-annotator/internal/annotation"
	"box-annotator/internal/app"
	"box-annotator/internal/config"
	"box-annotator/internal/imaging"
	"box-annotator/pkg/geometry"
	"box-annotator/ui/canvas"
	"box-annotator/ui/panels"
	"box-annotator/ui/prefs"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
)

const (
	prefKeyWindowWidth  = "windowWidth"
	prefKeyWindowHeight = "windowHeight"
	prefKeyLastImage    = "lastImage"
)

// MainWindow is the primary application window.
type MainWindow struct {
	fyne.Window
	app    fyne.App
	state  *app.State
	cfg    config.Config
	prefs  *prefs.Prefs
	cache  *imaging.Cache
	canvas *canvas.AnnotationCanvas

	imageList *panels.ImageList
	tagPanel  *panels.TagPanel
	boxPanel  *panels.BoxPanel
	statusBar *widget.Label

	logger      *slog.Logger
	activeImage string
}

// New creates the main window and wires it to the application state.
func New(fyneApp fyne.App, state *app.State, cfg config.Config, appPrefs *prefs.Prefs, cache *imaging.Cache, logger *slog.Logger) *MainWindow {
	win := fyneApp.NewWindow("Box Annotator")

	mw := &MainWindow{
		Window: win,
		app:    fyneApp,
		state:  state,
		cfg:    cfg,
		prefs:  appPrefs,
		cache:  cache,
		logger: logger,
	}

	mw.setupUI()
	mw.setupEventHandlers()
	mw.setupKeys()
	mw.restoreGeometry()

	return mw
}

// setupUI creates the main layout: image list | canvas | tag and box panels.
func (mw *MainWindow) setupUI() {
	mw.canvas = canvas.NewAnnotationCanvas(canvas.Config{
		MinScale:   mw.cfg.MinScale,
		MaxScale:   mw.cfg.MaxScale,
		MinBoxSize: mw.cfg.MinBoxSize,
	})
	mw.canvas.OnBoxDrawn(mw.onBoxDrawn)
	mw.canvas.OnZoomChange(func(scale float64) {
		mw.setStatus(fmt.Sprintf("Zoom: %.0f%%", scale*100))
	})

	mw.imageList = panels.NewImageList(mw.state, mw.cache)
	mw.tagPanel = panels.NewTagPanel(mw.state)
	mw.boxPanel = panels.NewBoxPanel(mw.state)
	mw.boxPanel.OnRelabel = mw.promptRelabel

	mw.statusBar = widget.NewLabel("Ready")

	canvasArea := container.NewBorder(
		mw.createToolbar(), // top
		nil, nil, nil,
		mw.canvas,
	)

	right := container.NewVSplit(mw.tagPanel.Container(), mw.boxPanel.Container())
	right.SetOffset(0.5)

	split := container.NewHSplit(mw.imageList.Container(), canvasArea)
	split.SetOffset(0.2)
	outer := container.NewHSplit(split, right)
	outer.SetOffset(0.8)

	content := container.NewBorder(
		nil,
		container.NewPadded(mw.statusBar), // bottom
		nil, nil,
		outer,
	)
	mw.SetContent(content)
}

// createToolbar creates the toolbar with view and session actions.
func (mw *MainWindow) createToolbar() fyne.CanvasObject {
	zoomOutBtn := widget.NewButton("-", mw.canvas.ZoomOut)
	zoomInBtn := widget.NewButton("+", mw.canvas.ZoomIn)
	fitBtn := widget.NewButton("Fit", mw.canvas.ResetView)

	saveBtn := widget.NewButton("Save", func() {
		mw.state.Save(context.Background(), false)
	})
	doneBtn := widget.NewButton("Save + Done", func() {
		mw.state.Save(context.Background(), true)
	})
	predictBtn := widget.NewButton("Predict", func() {
		mw.state.RequestPredictions(context.Background(), mw.cfg.PrimaryModel)
	})
	secondaryBtn := widget.NewButton("Predict (alt)", func() {
		mw.state.RequestPredictions(context.Background(), mw.cfg.SecondaryModel)
	})
	trainBtn := widget.NewButton("Train", func() {
		mw.state.StartTraining(context.Background())
	})

	return container.NewHBox(
		widget.NewLabel("Zoom:"),
		zoomOutBtn, zoomInBtn, fitBtn,
		widget.NewSeparator(),
		saveBtn, doneBtn,
		widget.NewSeparator(),
		predictBtn, secondaryBtn, trainBtn,
	)
}

// setupEventHandlers subscribes the window to application events.
func (mw *MainWindow) setupEventHandlers() {
	mw.state.On(app.EventSessionChanged, func(data any) {
		imageID, _ := data.(string)
		mw.refreshCanvas(imageID)
	})
	mw.state.On(app.EventImagesLoaded, func(data any) {
		count, _ := data.(int)
		mw.setStatus(fmt.Sprintf("Loaded %d images", count))
		mw.restoreLastImage()
	})
	mw.state.On(app.EventSaveResult, func(data any) {
		if ok, _ := data.(bool); ok {
			mw.setStatus("Saved")
		}
	})
	mw.state.On(app.EventTrainingStarted, func(any) {
		mw.setStatus("Training started")
	})
	mw.state.On(app.EventNotice, func(data any) {
		notice, _ := data.(app.Notice)
		mw.setStatus(notice.Message)
		if notice.Level >= slog.LevelError {
			dialog.ShowInformation("Backend", notice.Message, mw.Window)
		}
	})
	mw.state.On(app.EventTagChanged, func(data any) {
		tag, _ := data.(string)
		if tag == "" {
			mw.setStatus("Tag cleared")
		} else {
			mw.setStatus("Tag: " + tag)
		}
	})
}

// setupKeys routes digit keys to the tag shortcut table.
func (mw *MainWindow) setupKeys() {
	mw.Canvas().SetOnTypedRune(func(r rune) {
		if r >= '0' && r <= '9' {
			mw.state.HandleTagKey(r)
		}
	})
}

// refreshCanvas pushes the session working set to the canvas, reloading the
// image only when the active image actually changed.
func (mw *MainWindow) refreshCanvas(imageID string) {
	if imageID == mw.activeImage {
		mw.canvas.SetBoxes(mw.state.Boxes())
		return
	}
	mw.activeImage = imageID
	mw.prefs.SetString(prefKeyLastImage, imageID)

	img, err := mw.cache.Load(imageID)
	if err != nil {
		mw.logger.Error("image load failed", "path", imageID, "error", err)
		mw.setStatus("Could not load " + imageID)
		return
	}
	mw.canvas.SetImage(img, mw.state.Boxes())
	mw.setStatus("Editing " + imageID)
}

// onBoxDrawn lands a finalized rectangle in the session. When no tag is
// selected the box arrives unlabeled and the user is prompted.
func (mw *MainWindow) onBoxDrawn(r geometry.Rect) {
	box := mw.state.AddDrawnBox(r)
	if box.Label != "" {
		return
	}
	mw.promptRelabel(box)
}

// promptRelabel asks for a label and applies it to target. The target is
// resolved by value when the dialog confirms, so boxes shifting position
// while it is open cannot retarget the relabel.
func (mw *MainWindow) promptRelabel(target annotation.BoundingBox) {
	entry := widget.NewEntry()
	entry.SetText(mw.state.SelectedTag())
	dialog.ShowForm("Label", "Apply", "Cancel",
		[]*widget.FormItem{widget.NewFormItem("Label", entry)},
		func(ok bool) {
			if !ok || entry.Text == "" {
				return
			}
			if !mw.state.RelabelMatching(target, entry.Text) {
				mw.setStatus("Box is no longer in the session")
			}
		},
		mw.Window)
}

func (mw *MainWindow) setStatus(msg string) {
	mw.statusBar.SetText(msg)
}

// restoreGeometry applies the persisted window size.
func (mw *MainWindow) restoreGeometry() {
	w := mw.prefs.FloatWithFallback(prefKeyWindowWidth, 1280)
	h := mw.prefs.FloatWithFallback(prefKeyWindowHeight, 800)
	mw.Resize(fyne.NewSize(float32(w), float32(h)))
}

// restoreLastImage reselects the image that was active last session.
func (mw *MainWindow) restoreLastImage() {
	last := mw.prefs.String(prefKeyLastImage)
	if last == "" {
		return
	}
	for _, img := range mw.state.Images() {
		if img.ID() == last {
			mw.state.SelectImage(last)
			return
		}
	}
}

// SavePreferences persists window geometry and the last edited image.
func (mw *MainWindow) SavePreferences() error {
	size := mw.Canvas().Size()
	mw.prefs.SetFloat(prefKeyWindowWidth, float64(size.Width))
	mw.prefs.SetFloat(prefKeyWindowHeight, float64(size.Height))
	return mw.prefs.Save()
}
