package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcollins22/rugchekr/internal/pagination"
)

func storedAnalysis(id, addr string, at time.Time) *ContractAnalysis {
	return &ContractAnalysis{ID: id, Address: addr, AnalyzedAt: at, RiskScore: 10}
}

func TestMemoryStore_SaveGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	a := storedAnalysis("an_1", tokenAddr, analysisTime)
	require.NoError(t, s.Save(ctx, a))

	got, err := s.Get(ctx, "an_1")
	require.NoError(t, err)
	assert.Equal(t, a, got)

	got.RiskScore = 99
	again, _ := s.Get(ctx, "an_1")
	assert.Equal(t, 10, again.RiskScore)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_LatestForAddress(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Save(ctx, storedAnalysis("an_1", tokenAddr, analysisTime)))
	require.NoError(t, s.Save(ctx, storedAnalysis("an_2", creatorAddr, analysisTime.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, storedAnalysis("an_3", tokenAddr, analysisTime.Add(2*time.Minute))))

	got, err := s.LatestForAddress(ctx, "0x1F9840A85D5AF5BF1D1762F925BDADDC4201F984")
	require.NoError(t, err)
	assert.Equal(t, "an_3", got.ID)

	_, err = s.LatestForAddress(ctx, ownerAddr)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_ListRecentAndEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)
	require.NoError(t, s.Save(ctx, storedAnalysis("an_1", tokenAddr, analysisTime)))
	require.NoError(t, s.Save(ctx, storedAnalysis("an_2", tokenAddr, analysisTime.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, storedAnalysis("an_3", tokenAddr, analysisTime.Add(2*time.Minute))))

	list, err := s.ListRecent(ctx, nil, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "an_3", list[0].ID)
	assert.Equal(t, "an_2", list[1].ID)

	list, err = s.ListRecent(ctx, nil, 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListRecent(ctx, &pagination.Cursor{AnalyzedAt: analysisTime.Add(2 * time.Minute), ID: "an_3"}, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "an_2", list[0].ID)

	_, err = s.Get(ctx, "an_1")
	assert.ErrorIs(t, err, ErrNotFound)
}
