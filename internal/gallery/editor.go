package gallery

import (
	"sort"
	"sync"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

// Op is a gallery mutation that must not interleave with another
type Op uint8

const (
	OpNone Op = iota
	OpReorder
	OpSetPrimary
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpReorder:
		return "reordering"
	case OpSetPrimary:
		return "setting_primary"
	case OpDelete:
		return "deleting"
	default:
		return "idle"
	}
}

// State reports what is in flight for one gallery
type State struct {
	Uploading int    `json:"uploading"`
	Busy      string `json:"busy"`
}

// Editor holds the image list of one property as two copies: confirmed is
// the last list read back from the store, draft is what the user currently
// sees including optimistic changes. Reorder, set-primary and delete are
// serialized against each other and against uploads; uploads may overlap.
type Editor struct {
	mu        sync.Mutex
	confirmed []models.PropertyImage
	draft     []models.PropertyImage
	uploads   int
	op        Op
	dragIndex int
}

// NewEditor creates an editor seeded with a confirmed list
func NewEditor(images []models.PropertyImage) *Editor {
	e := &Editor{dragIndex: -1}
	e.confirmed = cloneImages(images)
	e.draft = cloneImages(images)
	return e
}

func cloneImages(images []models.PropertyImage) []models.PropertyImage {
	out := make([]models.PropertyImage, len(images))
	copy(out, images)
	return out
}

// Load replaces both copies with a fresh read. It is ignored while a
// serialized operation holds the draft.
func (e *Editor) Load(images []models.PropertyImage) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.op != OpNone {
		return false
	}
	e.confirmed = cloneImages(images)
	e.draft = cloneImages(images)
	return true
}

// Images returns the draft list
func (e *Editor) Images() []models.PropertyImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneImages(e.draft)
}

// Confirmed returns the last confirmed list
func (e *Editor) Confirmed() []models.PropertyImage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return cloneImages(e.confirmed)
}

// State returns the busy flags
func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{Uploading: e.uploads, Busy: e.op.String()}
}

// Idle reports whether nothing is in flight
func (e *Editor) Idle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.op == OpNone && e.uploads == 0
}

// BeginUpload registers an upload; fails while a serialized operation runs
func (e *Editor) BeginUpload() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.op != OpNone {
		return apperr.ErrBusy
	}
	e.uploads++
	return nil
}

// EndUpload releases an upload slot
func (e *Editor) EndUpload() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.uploads > 0 {
		e.uploads--
	}
}

// begin claims the serialized slot; caller holds mu
func (e *Editor) begin(op Op) error {
	if e.op != OpNone || e.uploads > 0 {
		return apperr.ErrBusy
	}
	e.op = op
	return nil
}

func (e *Editor) indexOf(imageID string) int {
	for i := range e.draft {
		if e.draft[i].ID == imageID {
			return i
		}
	}
	return -1
}

// renumber sets display_order to the draft position
func (e *Editor) renumber() {
	for i := range e.draft {
		e.draft[i].DisplayOrder = i
	}
}

// DragStart begins a drag gesture on the image at index
func (e *Editor) DragStart(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.op != OpNone || e.uploads > 0 {
		return apperr.ErrBusy
	}
	if index < 0 || index >= len(e.draft) {
		return apperr.Invalid("drag index %d out of range [0,%d)", index, len(e.draft))
	}
	e.op = OpReorder
	e.dragIndex = index
	return nil
}

// DragOver moves the dragged image to index immediately and keeps tracking it there
func (e *Editor) DragOver(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.op != OpReorder || e.dragIndex < 0 {
		return apperr.Invalid("no drag in progress")
	}
	if index < 0 || index >= len(e.draft) {
		return apperr.Invalid("drop index %d out of range [0,%d)", index, len(e.draft))
	}
	from := e.dragIndex
	if from == index {
		return nil
	}

	item := e.draft[from]
	e.draft = append(e.draft[:from], e.draft[from+1:]...)
	e.draft = append(e.draft[:index], append([]models.PropertyImage{item}, e.draft[index:]...)...)
	e.dragIndex = index
	return nil
}

// DragEnd finishes the gesture and returns the id sequence to persist.
// The operation stays open until Confirm or Rollback.
func (e *Editor) DragEnd() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dragIndex = -1
	e.renumber()
	ids := make([]string, len(e.draft))
	for i := range e.draft {
		ids[i] = e.draft[i].ID
	}
	return ids
}

// Arrange applies a complete new order. ids must be a permutation of the draft.
func (e *Editor) Arrange(ids []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.op != OpNone || e.uploads > 0 {
		return apperr.ErrBusy
	}
	if len(ids) != len(e.draft) {
		return apperr.Invalid("order has %d ids, gallery has %d images", len(ids), len(e.draft))
	}

	byID := make(map[string]models.PropertyImage, len(e.draft))
	for _, img := range e.draft {
		byID[img.ID] = img
	}
	next := make([]models.PropertyImage, 0, len(ids))
	for _, id := range ids {
		img, ok := byID[id]
		if !ok {
			return apperr.Invalid("image %s is not in this gallery or listed twice", id)
		}
		delete(byID, id)
		next = append(next, img)
	}

	e.op = OpReorder
	e.draft = next
	e.renumber()
	return nil
}

// MarkPrimary flags imageID as the only primary in the draft
func (e *Editor) MarkPrimary(imageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpSetPrimary); err != nil {
		return err
	}
	if e.indexOf(imageID) < 0 {
		e.op = OpNone
		return apperr.ErrNotFound
	}
	for i := range e.draft {
		e.draft[i].IsPrimary = e.draft[i].ID == imageID
	}
	return nil
}

// Remove drops imageID from the draft and, if it was primary, promotes the
// remaining image with the smallest display order.
func (e *Editor) Remove(imageID string) (models.PropertyImage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.begin(OpDelete); err != nil {
		return models.PropertyImage{}, err
	}
	idx := e.indexOf(imageID)
	if idx < 0 {
		e.op = OpNone
		return models.PropertyImage{}, apperr.ErrNotFound
	}

	removed := e.draft[idx]
	e.draft = append(e.draft[:idx], e.draft[idx+1:]...)
	if removed.IsPrimary && len(e.draft) > 0 {
		next := 0
		for i := 1; i < len(e.draft); i++ {
			if lessOrder(e.draft[i], e.draft[next]) {
				next = i
			}
		}
		e.draft[next].IsPrimary = true
	}
	return removed, nil
}

// Confirm accepts images as the new confirmed state and ends the operation
func (e *Editor) Confirm(images []models.PropertyImage) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.confirmed = cloneImages(images)
	e.draft = cloneImages(images)
	e.op = OpNone
	e.dragIndex = -1
}

// Rollback restores the draft to the confirmed snapshot and ends the operation
func (e *Editor) Rollback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.draft = cloneImages(e.confirmed)
	e.op = OpNone
	e.dragIndex = -1
}

func lessOrder(a, b models.PropertyImage) bool {
	if a.DisplayOrder != b.DisplayOrder {
		return a.DisplayOrder < b.DisplayOrder
	}
	return a.CreatedAt.Before(b.CreatedAt)
}

// sortImages orders images the way List returns them
func sortImages(images []models.PropertyImage) {
	sort.SliceStable(images, func(i, j int) bool { return lessOrder(images[i], images[j]) })
}
