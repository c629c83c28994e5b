package businessflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/florelabs/leaftag/app/dto"
	"github.com/florelabs/leaftag/mirror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryFlow(guard *stubCounterGuard) (TagQueryFlow, TagFlow, *fakeTagRepo) {
	repo := newFakeTagRepo()
	tagFlow := NewTagFlow(repo, nil)
	if guard == nil {
		return NewTagQueryFlow(repo, nil), tagFlow, repo
	}
	return NewTagQueryFlow(repo, guard), tagFlow, repo
}

func TestTagQueryFlowListTags(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)

	for i := 0; i < 3; i++ {
		registerTag(t, tagFlow, fmt.Sprintf("04A1B2C3D4E5F%d", i), aliceID)
	}
	registerTag(t, tagFlow, "04FFFFFFFFFFFF", bobID)

	result, err := queryFlow.ListTags(context.Background(), aliceID, 10, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Total)
	assert.Len(t, result.Items, 3)
	for _, item := range result.Items {
		assert.NotEqual(t, "04FFFFFFFFFFFF", item.UID)
	}
}

func TestTagQueryFlowListTagsPagination(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)

	for i := 0; i < 5; i++ {
		registerTag(t, tagFlow, fmt.Sprintf("04A1B2C3D4E5F%d", i), aliceID)
	}

	page, err := queryFlow.ListTags(context.Background(), aliceID, 2, 4)
	require.NoError(t, err)

	assert.Equal(t, int64(5), page.Total)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 4, page.Offset)
}

func TestTagQueryFlowListTagsExcludesInactive(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)

	keep := registerTag(t, tagFlow, "04A1B2C3D4E5F0", aliceID)
	retired := registerTag(t, tagFlow, "04A1B2C3D4E5F1", aliceID)

	_, err := tagFlow.Deactivate(context.Background(), uuid.MustParse(retired.UUID), aliceID)
	require.NoError(t, err)

	result, err := queryFlow.ListTags(context.Background(), aliceID, 10, 0)
	require.NoError(t, err)

	require.Len(t, result.Items, 1)
	assert.Equal(t, keep.UUID, result.Items[0].UUID)
}

func TestTagQueryFlowListTagsDefaultsPageSize(t *testing.T) {
	queryFlow, _, _ := newTestQueryFlow(nil)

	result, err := queryFlow.ListTags(context.Background(), aliceID, 0, -3)
	require.NoError(t, err)

	assert.Equal(t, 20, result.Limit)
	assert.Equal(t, 0, result.Offset)
	assert.Empty(t, result.Items)
}

func TestTagQueryFlowGetTagVisibility(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)
	tag := registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	found, err := queryFlow.GetTag(context.Background(), uuid.MustParse(tag.UUID), aliceID)
	require.NoError(t, err)
	assert.Equal(t, tag.UUID, found.UUID)

	_, err = queryFlow.GetTag(context.Background(), uuid.MustParse(tag.UUID), bobID)
	assert.ErrorIs(t, err, ErrTagNotFound)

	_, err = queryFlow.GetTag(context.Background(), uuid.New(), aliceID)
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestTagQueryFlowScanLookup(t *testing.T) {
	guard := &stubCounterGuard{}
	queryFlow, tagFlow, _ := newTestQueryFlow(guard)
	tag := registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	result, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04A1B2C3D4E5F600002A",
	}, aliceID)
	require.NoError(t, err)

	assert.Equal(t, tag.UUID, result.Tag.UUID)
	assert.Equal(t, uint32(0x2A), result.Counter)
	assert.False(t, result.Replayed)
	assert.Equal(t, []uint32{0x2A}, guard.observed)
}

func TestTagQueryFlowScanLookupLowercaseMirror(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)
	tag := registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	result, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04a1b2c3d4e5f600002a",
	}, aliceID)
	require.NoError(t, err)
	assert.Equal(t, tag.UUID, result.Tag.UUID)
}

func TestTagQueryFlowScanLookupReportsReplay(t *testing.T) {
	guard := &stubCounterGuard{replayed: true}
	queryFlow, tagFlow, _ := newTestQueryFlow(guard)
	registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	result, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04A1B2C3D4E5F6000001",
	}, aliceID)
	require.NoError(t, err)
	assert.True(t, result.Replayed)
}

func TestTagQueryFlowScanLookupGuardOutageDegrades(t *testing.T) {
	guard := &stubCounterGuard{replayed: true, err: errors.New("cache down")}
	queryFlow, tagFlow, _ := newTestQueryFlow(guard)
	registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	result, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04A1B2C3D4E5F6000001",
	}, aliceID)
	require.NoError(t, err)
	assert.False(t, result.Replayed)
}

func TestTagQueryFlowScanLookupBadMirror(t *testing.T) {
	queryFlow, _, _ := newTestQueryFlow(nil)

	_, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04A1B2C3D4E5",
	}, aliceID)

	var fe *mirror.FormatError
	assert.ErrorAs(t, err, &fe)
}

func TestTagQueryFlowScanLookupNotVisible(t *testing.T) {
	queryFlow, tagFlow, _ := newTestQueryFlow(nil)
	registerTag(t, tagFlow, "04A1B2C3D4E5F6", aliceID)

	_, err := queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04A1B2C3D4E5F6000001",
	}, bobID)
	assert.ErrorIs(t, err, ErrTagNotFound)

	_, err = queryFlow.ScanLookup(context.Background(), &dto.ScanTagRequest{
		ASCIIMirror: "04FFFFFFFFFFFF000001",
	}, aliceID)
	assert.ErrorIs(t, err, ErrTagNotFound)
}
