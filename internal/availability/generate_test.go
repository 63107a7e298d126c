package availability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asperus/agenda/internal/stores"
)

func TestGenerate(t *testing.T) {
	slots, err := Generate(stores.Store{ID: "s1", OpeningTime: "09:00", ClosingTime: "10:30", SlotIntervalMinutes: 30})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, slots)

	slots, err = Generate(stores.Store{ID: "s1", OpeningTime: "09:00", ClosingTime: "10:00", SlotIntervalMinutes: 45})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:45"}, slots)

	slots, err = Generate(stores.Store{ID: "s1"})
	require.NoError(t, err)
	assert.Len(t, slots, 18)
	assert.Equal(t, "17:30", slots[len(slots)-1])

	_, err = Generate(stores.Store{ID: "s1", OpeningTime: "nine"})
	assert.Error(t, err)
}

func TestGenerateRejectsInvertedHours(t *testing.T) {
	_, err := Generate(stores.Store{ID: "x", OpeningTime: "18:00", ClosingTime: "09:00"})
	assert.ErrorIs(t, err, stores.ErrInvalidStore)

	_, err = Generate(stores.Store{ID: "x", OpeningTime: "09:00", ClosingTime: "09:00"})
	assert.ErrorIs(t, err, stores.ErrInvalidStore)

	assert.False(t, IsCandidate(stores.Store{ID: "x", OpeningTime: "18:00", ClosingTime: "09:00"}, "18:00"))
}

func TestIsCandidate(t *testing.T) {
	s := stores.Store{ID: "s1", OpeningTime: "09:00", ClosingTime: "10:00"}
	assert.True(t, IsCandidate(s, "09:30"))
	assert.False(t, IsCandidate(s, "09:15"))
	assert.False(t, IsCandidate(s, "10:00"))
}
