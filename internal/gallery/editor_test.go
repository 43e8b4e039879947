package gallery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RalphPichler23/twi-react-backend/internal/apperr"
	"github.com/RalphPichler23/twi-react-backend/internal/models"
)

func fixtureImages() []models.PropertyImage {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ids := []string{"A", "B", "C", "D"}
	images := make([]models.PropertyImage, len(ids))
	for i, id := range ids {
		images[i] = models.PropertyImage{
			ID:           id,
			PropertyID:   "p1",
			ImageURL:     "http://test.local/files/property_images/p1/" + id + ".png",
			DisplayOrder: i,
			IsPrimary:    i == 0,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		}
	}
	return images
}

func TestEditorDragSplice(t *testing.T) {
	e := NewEditor(fixtureImages())

	require.NoError(t, e.DragStart(0))
	assert.Equal(t, "reordering", e.State().Busy)

	require.NoError(t, e.DragOver(2))
	assert.Equal(t, []string{"B", "C", "A", "D"}, imageIDs(e.Images()))

	// the dragged image is tracked at its new position
	require.NoError(t, e.DragOver(3))
	assert.Equal(t, []string{"B", "C", "D", "A"}, imageIDs(e.Images()))

	require.NoError(t, e.DragOver(1))
	ids := e.DragEnd()
	assert.Equal(t, []string{"B", "A", "C", "D"}, ids)
	for i, img := range e.Images() {
		assert.Equal(t, i, img.DisplayOrder)
	}

	// confirmed copy is untouched until Confirm
	assert.Equal(t, []string{"A", "B", "C", "D"}, imageIDs(e.Confirmed()))
	assert.False(t, e.Idle())
}

func TestEditorDragBounds(t *testing.T) {
	e := NewEditor(fixtureImages())

	var verr *apperr.ValidationError
	assert.ErrorAs(t, e.DragStart(4), &verr)
	assert.ErrorAs(t, e.DragOver(1), &verr)

	require.NoError(t, e.DragStart(1))
	assert.ErrorAs(t, e.DragOver(-1), &verr)
	require.NoError(t, e.DragOver(1))
	assert.Equal(t, []string{"A", "B", "C", "D"}, imageIDs(e.Images()))
}

func TestEditorRollback(t *testing.T) {
	e := NewEditor(fixtureImages())

	require.NoError(t, e.Arrange([]string{"D", "C", "B", "A"}))
	assert.Equal(t, []string{"D", "C", "B", "A"}, imageIDs(e.Images()))

	e.Rollback()
	assert.Equal(t, []string{"A", "B", "C", "D"}, imageIDs(e.Images()))
	assert.True(t, e.Idle())
	assert.Equal(t, "idle", e.State().Busy)
}

func TestEditorArrangeRejectsBadPermutation(t *testing.T) {
	e := NewEditor(fixtureImages())

	var verr *apperr.ValidationError
	assert.ErrorAs(t, e.Arrange([]string{"A", "B", "C"}), &verr)
	assert.ErrorAs(t, e.Arrange([]string{"A", "B", "C", "C"}), &verr)
	assert.ErrorAs(t, e.Arrange([]string{"A", "B", "C", "Z"}), &verr)
	assert.True(t, e.Idle())
	assert.Equal(t, []string{"A", "B", "C", "D"}, imageIDs(e.Images()))
}

func TestEditorSerializesOperations(t *testing.T) {
	e := NewEditor(fixtureImages())

	require.NoError(t, e.MarkPrimary("C"))
	assert.Equal(t, []string{"C"}, primaryIDs(e.Images()))

	assert.ErrorIs(t, e.Arrange([]string{"D", "C", "B", "A"}), apperr.ErrBusy)
	_, err := e.Remove("B")
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.ErrorIs(t, e.DragStart(0), apperr.ErrBusy)
	assert.ErrorIs(t, e.BeginUpload(), apperr.ErrBusy)

	// a fresh read does not clobber the in-flight draft
	assert.False(t, e.Load(fixtureImages()))
	assert.Equal(t, []string{"C"}, primaryIDs(e.Images()))

	e.Confirm(e.Images())
	assert.True(t, e.Idle())
	assert.Equal(t, []string{"C"}, primaryIDs(e.Confirmed()))
}

func TestEditorUploadsBlockSerializedOps(t *testing.T) {
	e := NewEditor(fixtureImages())

	require.NoError(t, e.BeginUpload())
	require.NoError(t, e.BeginUpload())
	assert.Equal(t, 2, e.State().Uploading)

	assert.ErrorIs(t, e.MarkPrimary("B"), apperr.ErrBusy)
	e.EndUpload()
	assert.ErrorIs(t, e.MarkPrimary("B"), apperr.ErrBusy)
	e.EndUpload()
	require.NoError(t, e.MarkPrimary("B"))
}

func TestEditorMarkPrimaryUnknown(t *testing.T) {
	e := NewEditor(fixtureImages())

	assert.ErrorIs(t, e.MarkPrimary("Z"), apperr.ErrNotFound)
	assert.True(t, e.Idle())
}

func TestEditorRemovePromotesSmallestOrder(t *testing.T) {
	images := fixtureImages()
	// B and C share an order; the older one wins
	images[2].DisplayOrder = 1
	e := NewEditor(images)

	removed, err := e.Remove("A")
	require.NoError(t, err)
	assert.Equal(t, "A", removed.ID)
	assert.Equal(t, []string{"B", "C", "D"}, imageIDs(e.Images()))
	assert.Equal(t, []string{"B"}, primaryIDs(e.Images()))

	e.Rollback()
	assert.Equal(t, []string{"A", "B", "C", "D"}, imageIDs(e.Images()))
	assert.Equal(t, []string{"A"}, primaryIDs(e.Images()))
}

func TestEditorRemoveLast(t *testing.T) {
	e := NewEditor(fixtureImages()[:1])

	_, err := e.Remove("A")
	require.NoError(t, err)
	assert.Empty(t, e.Images())
}

func TestSortImages(t *testing.T) {
	images := fixtureImages()
	images[0].DisplayOrder = 5
	images[3].DisplayOrder = 1
	sortImages(images)
	assert.Equal(t, []string{"B", "D", "C", "A"}, imageIDs(images))
}
