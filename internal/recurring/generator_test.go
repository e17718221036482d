package recurring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/mo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leganyst/recurring-ledger/internal/calendar"
)

var d = calendar.MustParseDate

func monthlyTemplate() Template {
	return Template{
		ID:          uuid.New(),
		OwnerID:     uuid.New(),
		Type:        TypeExpense,
		Amount:      decimal.RequireFromString("1200.00"),
		Description: "Rent",
		CategoryRef: "housing",
		Anchor:      d("2024-01-01"),
		Schedule:    calendar.Monthly{Count: 1},
		End:         Never{},
		SkipDates:   calendar.NewDateSet(),
		Status:      StatusActive,
	}
}

func TestGenerate_MonthlyWithinHorizon(t *testing.T) {
	tpl := monthlyTemplate()

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-03-01"), d("2024-04-01")}, got)
}

func TestGenerate_SkipDate(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.SkipDates.Add(d("2024-03-01"))

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-04-01")}, got)
}

func TestGenerate_MaxOccurrencesRemaining(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.End = MaxOccurrences{N: 2}
	tpl.OccurrenceCount = 1

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01")}, got)

	tpl.OccurrenceCount = 2
	got, err = Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_SkippedDateDoesNotConsumeBudget(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.End = MaxOccurrences{N: 2}
	tpl.SkipDates.Add(d("2024-02-01"))

	got, err := Generate(tpl, d("2024-06-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-03-01"), d("2024-04-01")}, got)
}

func TestGenerate_EndDateInclusive(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.End = EndDate{Date: d("2024-03-01")}

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-03-01")}, got)
}

func TestGenerate_EndDateInPast(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.End = EndDate{Date: d("2024-01-10")}

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_PausedIsEmpty(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.Status = StatusPaused

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGenerate_AsOfIsInclusive(t *testing.T) {
	tpl := monthlyTemplate()

	got, err := Generate(tpl, d("2024-02-01"), d("2024-02-01"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01")}, got)
}

func TestGenerate_FutureAnchor(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.Anchor = d("2024-03-20")

	got, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-03-20")}, got)
}

func TestGenerate_WeeklyNeverBeforeAnchor(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.Anchor = d("2024-01-03") // среда
	tpl.Schedule = calendar.Weekly{Count: 1, DayOfWeek: mo.Some(time.Monday)}

	got, err := Generate(tpl, d("2024-01-22"), d("2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-01-08"), d("2024-01-15"), d("2024-01-22")}, got)
}

func TestGenerate_OldAnchorMatchesFullWalk(t *testing.T) {
	schedules := []calendar.Schedule{
		calendar.Daily{Count: 3},
		calendar.Weekly{Count: 2, DayOfWeek: mo.Some(time.Saturday)},
		calendar.Monthly{Count: 5, DayOfMonth: mo.Some(31)},
		calendar.Yearly{Count: 1},
	}
	asOf, horizon := d("2024-01-15"), d("2025-01-15")
	for _, s := range schedules {
		tpl := monthlyTemplate()
		tpl.Anchor = d("1999-12-31")
		tpl.Schedule = s

		got, err := Generate(tpl, horizon, asOf)
		require.NoError(t, err)

		var want []calendar.Date
		for i := 0; ; i++ {
			occ, err := calendar.Next(tpl.Anchor, s, i)
			require.NoError(t, err)
			if occ.After(horizon) {
				break
			}
			if !occ.Before(asOf) {
				want = append(want, occ)
			}
		}
		assert.Equal(t, want, got, "schedule %T", s)
	}
}

func TestGenerate_OutputIsSortedAndInsideWindow(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.Schedule = calendar.Daily{Count: 2}
	tpl.SkipDates = calendar.NewDateSet(d("2024-01-17"), d("2024-02-02"))
	asOf, horizon := d("2024-01-15"), d("2024-04-15")

	got, err := Generate(tpl, horizon, asOf)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for i, occ := range got {
		assert.False(t, occ.Before(asOf))
		assert.False(t, occ.After(horizon))
		assert.False(t, tpl.SkipDates.Contains(occ))
		if i > 0 {
			assert.True(t, got[i-1].Before(occ))
		}
	}
}

func TestHorizonEnd(t *testing.T) {
	assert.Equal(t, d("2024-04-15"), HorizonEnd(d("2024-01-15"), 3))
	assert.Equal(t, d("2024-02-29"), HorizonEnd(d("2023-11-30"), 3))
}

func TestPreview(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.SkipDates.Add(d("2024-03-01"))

	got, err := Preview(tpl, d("2024-01-15"), 3)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-04-01"), d("2024-05-01")}, got)

	tpl.End = MaxOccurrences{N: 3}
	tpl.OccurrenceCount = 2
	got, err = Preview(tpl, d("2024-01-15"), 5)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01")}, got)

	tpl.End = EndDate{Date: d("2024-04-30")}
	got, err = Preview(tpl, d("2024-01-15"), 10)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-04-01")}, got)
}

func TestGenerate_OversizedIntervalFailsFast(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.Schedule = calendar.Daily{Count: 1 << 62}

	done := make(chan error, 1)
	go func() {
		_, err := Generate(tpl, d("2024-04-15"), d("2024-01-15"))
		done <- err
	}()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, calendar.ErrInvalidSchedule)
	case <-time.After(2 * time.Second):
		t.Fatal("generation did not terminate")
	}
}

func TestPreview_LargeMaxOccurrencesIsLazy(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.End = MaxOccurrences{N: MaxOccurrencesLimit}

	got, err := Preview(tpl, d("2024-01-15"), 2)
	require.NoError(t, err)
	assert.Equal(t, []calendar.Date{d("2024-02-01"), d("2024-03-01")}, got)
}

func TestNthOccurrence(t *testing.T) {
	tpl := monthlyTemplate()
	tpl.SkipDates.Add(d("2024-02-01"))

	got, ok, err := NthOccurrence(tpl, tpl.Anchor, 3)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d("2024-04-01"), got)

	got, ok, err = NthOccurrence(tpl, tpl.Anchor, MaxOccurrencesLimit)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2024+MaxOccurrencesLimit/12, got.Year())

	tpl.End = EndDate{Date: d("2024-03-31")}
	_, ok, err = NthOccurrence(tpl, tpl.Anchor, 3)
	require.NoError(t, err)
	assert.False(t, ok)
}
