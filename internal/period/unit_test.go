package period

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnit(t *testing.T) {
	u, err := NewUnit(2024, "Q4")
	require.NoError(t, err)
	assert.Equal(t, "2024-12-31", u.ReportDate())
	assert.Equal(t, "2024_Q4", u.ID())
	assert.Equal(t, "2024年年报", u.String())

	u, err = NewUnit(2023, "半年报")
	require.NoError(t, err)
	assert.Equal(t, Q2, u.Period)
	assert.Equal(t, "2023-06-30", u.ReportDate())

	_, err = NewUnit(2023, "H1")
	assert.True(t, errors.Is(err, ErrInvalidPeriod))
}

func TestParseID(t *testing.T) {
	u, err := ParseID("2021_Q3")
	require.NoError(t, err)
	assert.Equal(t, Unit{Year: 2021, Period: Q3}, u)

	for _, bad := range []string{"2021", "abc_Q1", "2021_Q9"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestUnits(t *testing.T) {
	got := Units(2020, 2021, []Period{Q2, Q4})
	assert.Equal(t, []Unit{
		{2020, Q2}, {2020, Q4},
		{2021, Q2}, {2021, Q4},
	}, got)
	assert.Empty(t, Units(2022, 2021, All()))
}
