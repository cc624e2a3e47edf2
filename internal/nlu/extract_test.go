package nlu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// refNow is a Saturday.
var refNow = time.Date(2024, time.June, 8, 9, 0, 0, 0, time.UTC)

func TestExtractBookingScenario(t *testing.T) {
	s := Extract("Book a meeting titled 'Sync' on 2024-06-10 at 10:00 for 30 minutes", nil, refNow)

	require.NotNil(t, s.Datetime)
	assert.Equal(t, time.Date(2024, time.June, 10, 10, 0, 0, 0, time.UTC), *s.Datetime)
	assert.Equal(t, 30, s.DurationMinutes)
	assert.Equal(t, "Sync", s.Summary)
	assert.Equal(t, "UTC", s.Timezone)
	assert.Empty(t, s.Attendees)
	assert.False(t, s.Ambiguous)
	assert.True(t, s.HasDate)
	assert.True(t, s.HasTime)
	assert.True(t, s.HasSummary)
	assert.True(t, s.HasDuration)
}

func TestExtractDatetime(t *testing.T) {
	tests := []struct {
		name    string
		message string
		want    time.Time
	}{
		{"iso with T", "book 2024-06-12T15:30", time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)},
		{"iso with space", "book 2024-06-12 15:30", time.Date(2024, 6, 12, 15, 30, 0, 0, time.UTC)},
		{"iso with am/pm overlay", "book 2024-06-12 at 3pm", time.Date(2024, 6, 12, 15, 0, 0, 0, time.UTC)},
		{"12pm stays noon", "book 2024-06-12 at 12pm", time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)},
		{"12am is midnight", "book 2024-06-12 at 12am", time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)},
		{"day first slash", "book 10/07/2024 at 9am", time.Date(2024, 7, 10, 9, 0, 0, 0, time.UTC)},
		{"month name", "book June 20 at 11:15", time.Date(2024, 6, 20, 11, 15, 0, 0, time.UTC)},
		{"day month year", "book 3rd of July 2025 at 2:30pm", time.Date(2025, 7, 3, 14, 30, 0, 0, time.UTC)},
		{"past month rolls to next year", "book March 1 at 10am", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"tomorrow", "When am I free tomorrow at 2pm for 1 hour", time.Date(2024, 6, 9, 14, 0, 0, 0, time.UTC)},
		{"today without time", "what is on today", time.Date(2024, 6, 8, 0, 0, 0, 0, time.UTC)},
		{"day after tomorrow", "book day after tomorrow at noon", time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)},
		{"tonight default", "dinner tonight", time.Date(2024, 6, 8, 20, 0, 0, 0, time.UTC)},
		{"tonight with time", "dinner tonight at 9pm", time.Date(2024, 6, 8, 21, 0, 0, 0, time.UTC)},
		{"weekday", "book Monday at 9am", time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)},
		{"next same weekday", "book next Saturday at 9am", time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)},
		{"weekday before explicit date", "book Monday, June 17 at 9am", time.Date(2024, 6, 17, 9, 0, 0, 0, time.UTC)},
		{"time only means today", "book at 4:45pm", time.Date(2024, 6, 8, 16, 45, 0, 0, time.UTC)},
		{"first mention wins", "book tomorrow, not 2024-07-01", time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)},
		{"iso with offset", "book 2024-06-10T10:00:00+02:00", time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)},
		{"iso with negative offset", "book 2024-06-10T10:00-04:30", time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)},
		{"iso with Z", "book 2024-06-10T10:00:00Z", time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Extract(tt.message, nil, refNow)
			require.NotNil(t, s.Datetime)
			assert.True(t, tt.want.Equal(*s.Datetime), "got %s want %s", s.Datetime, tt.want)
		})
	}
}

func TestExtractUnparseableDateIsAmbiguous(t *testing.T) {
	for _, msg := range []string{
		"Book something next week",
		"book a meeting on 2024-13-45",
		"book lunch sometime",
		"book a call",
	} {
		t.Run(msg, func(t *testing.T) {
			s := Extract(msg, nil, refNow)
			assert.True(t, s.Ambiguous)
		})
	}
}

func TestExtractVaguePhraseWithDateIsAmbiguous(t *testing.T) {
	s := Extract("book tomorrow at 3pm or maybe later", nil, refNow)
	require.NotNil(t, s.Datetime)
	assert.True(t, s.Ambiguous)
}

func TestExtractOffsetKeepsExtractedZone(t *testing.T) {
	s := Extract("Book 'Offset' on 2024-06-10T10:00:00+02:00 Europe/London", nil, refNow)
	require.NotNil(t, s.Datetime)
	assert.Equal(t, "Europe/London", s.Timezone)
	assert.True(t, time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC).Equal(*s.Datetime))
	assert.Equal(t, "Europe/London", s.Datetime.Location().String())
	assert.Equal(t, 9, s.Datetime.Hour())
}

func TestExtractIgnoresImpossibleOffset(t *testing.T) {
	s := Extract("book 2024-06-10T10:00+25:00", nil, refNow)
	assert.False(t, s.HasDate)
}

func TestExtractTimezone(t *testing.T) {
	s := Extract("book tomorrow at 9am Europe/London", nil, refNow)
	require.NotNil(t, s.Datetime)
	assert.Equal(t, "Europe/London", s.Timezone)
	assert.True(t, s.HasTimezone)

	loc, err := time.LoadLocation("Europe/London")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 6, 9, 9, 0, 0, 0, loc).Equal(*s.Datetime))

	// Not a real zone.
	s = Extract("book and/or something tomorrow", nil, refNow)
	assert.Equal(t, "UTC", s.Timezone)
	assert.False(t, s.HasTimezone)
}

func TestExtractDuration(t *testing.T) {
	tests := []struct {
		message string
		want    int
	}{
		{"book for 2 hours", 120},
		{"book for 1 hour", 60},
		{"book for 1.5 hours", 90},
		{"book for 45 minutes", 45},
		{"book for 15 mins", 15},
		{"book for half an hour", 30},
		{"book for an hour", 60},
		{"book 1 hour and 30 minutes", 60},
		{"book something", DefaultDurationMinutes},
		{"book for 0 minutes", DefaultDurationMinutes},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.message, nil, refNow).DurationMinutes)
		})
	}
}

func TestExtractDurationOutOfRange(t *testing.T) {
	for _, msg := range []string{
		"Book 'Marathon' on 2024-06-10 at 10:00 for 3000000 hours",
		"Book 'Marathon' on 2024-06-10 at 10:00 for 99999999999999999999 minutes",
		"Book 'Marathon' on 2024-06-10 at 10:00 for 20161 minutes",
	} {
		t.Run(msg, func(t *testing.T) {
			s := Extract(msg, nil, refNow)
			require.NotNil(t, s.Datetime)
			assert.True(t, s.DurationOutOfRange)
			assert.True(t, s.Ambiguous)
			assert.False(t, s.HasDuration)
			assert.Equal(t, DefaultDurationMinutes, s.DurationMinutes)
		})
	}

	s := Extract("Book 'Retreat' on 2024-06-10 at 10:00 for 336 hours", nil, refNow)
	assert.False(t, s.DurationOutOfRange)
	assert.False(t, s.Ambiguous)
	assert.Equal(t, MaxDurationMinutes, s.DurationMinutes)
}

func TestMinutesDuration(t *testing.T) {
	tests := []struct {
		minutes float64
		want    time.Duration
		wantErr bool
	}{
		{1, time.Minute, false},
		{90, 90 * time.Minute, false},
		{MaxDurationMinutes, 14 * 24 * time.Hour, false},
		{0, 0, true},
		{-5, 0, true},
		{1.5, 0, true},
		{MaxDurationMinutes + 1, 0, true},
		{1e30, 0, true},
	}
	for _, tt := range tests {
		got, err := MinutesDuration(tt.minutes)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidDuration, "minutes=%v", tt.minutes)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	got, err := ParseMinutes("45")
	require.NoError(t, err)
	assert.Equal(t, 45*time.Minute, got)
	_, err = ParseMinutes("soon")
	assert.ErrorIs(t, err, ErrInvalidDuration)
	_, err = ParseMinutes("9223372036854775807")
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestExtractSummary(t *testing.T) {
	tests := []struct {
		message string
		want    string
	}{
		{"Book 'Quarterly review' tomorrow", "Quarterly review"},
		{`Book "Design sync" tomorrow`, "Design sync"},
		{"Schedule a call titled Budget planning on Monday", "Budget planning"},
		{"Book a slot for project kickoff with Alice tomorrow", "project kickoff"},
		{"Book for 30 minutes for dentist, tomorrow at 9am", "dentist"},
		{"Book something for me tomorrow", DefaultSummary},
		{"Book a meeting tomorrow at 10am", "Meeting"},
		{"I'm booking tomorrow at 10am", DefaultSummary},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.message, nil, refNow).Summary)
		})
	}
}

func TestExtractAttendees(t *testing.T) {
	s := Extract("Schedule a sync with alice, bob and CAROL smith tomorrow at 3pm", nil, refNow)
	assert.Equal(t, []string{"Alice", "Bob", "Carol Smith"}, s.Attendees)
	assert.True(t, s.HasAttendees)

	s = Extract("Book lunch with Dana about the budget", nil, refNow)
	assert.Equal(t, []string{"Dana"}, s.Attendees)

	s = Extract("Book lunch with me", nil, refNow)
	assert.Empty(t, s.Attendees)
}

func TestExtractUsesContextFallbacks(t *testing.T) {
	ctx := &ContextEvent{
		Summary:         "Sync",
		Datetime:        time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC),
		DurationMinutes: 45,
		Timezone:        "Europe/Berlin",
		Attendees:       []string{"Alice"},
	}

	s := Extract("move it to tomorrow at 9am", ctx, refNow)
	assert.Equal(t, "Sync", s.Summary)
	assert.False(t, s.HasSummary)
	assert.Equal(t, 45, s.DurationMinutes)
	assert.False(t, s.HasDuration)
	assert.Equal(t, "Europe/Berlin", s.Timezone)
	assert.Equal(t, []string{"Alice"}, s.Attendees)

	// Explicit values beat the context.
	s = Extract("move it to tomorrow at 9am for 15 minutes for 'Retro' with Bob Asia/Tokyo", ctx, refNow)
	assert.Equal(t, "Retro", s.Summary)
	assert.Equal(t, 15, s.DurationMinutes)
	assert.Equal(t, "Asia/Tokyo", s.Timezone)
	assert.Equal(t, []string{"Bob"}, s.Attendees)
}

func TestExtractReference(t *testing.T) {
	tests := []struct {
		message  string
		want     string
		wantKind ReferenceKind
	}{
		{"Cancel my 2pm event", "14:00", RefTime},
		{"Cancel the 9:30am call", "09:30", RefTime},
		{"Cancel my meeting on 2024-06-10 at 10:00", "2024-06-10T10:00", RefTime},
		{"Cancel my meeting on 2024-06-10", "2024-06-10", RefTime},
		{"Cancel my last event", ReferenceLast, RefLast},
		{"Cancel the last meeting tomorrow", ReferenceLast, RefLast},
		{"Cancel the next meeting on 2024-06-10", ReferenceNext, RefNext},
		{"Cancel the last meeting tomorrow at 3pm", "2024-06-09T15:00", RefTime},
		{"Cancel the next meeting", ReferenceNext, RefNext},
		{"Cancel 'Sync'", "Sync", RefTitle},
		{"Cancel the appointment about dental checkup", "dental checkup", RefTitle},
		{"Cancel it", ReferenceContext, RefContext},
		{"Please cancel that", ReferenceContext, RefContext},
		{"Cancel my booking", "", RefNone},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			s := Extract(tt.message, nil, refNow)
			assert.Equal(t, tt.want, s.Reference)
			assert.Equal(t, tt.wantKind, s.ReferenceKind)
		})
	}
}

func TestExtractNextWeekIsNotANextReference(t *testing.T) {
	s := Extract("cancel my meeting next week", nil, refNow)
	assert.NotEqual(t, ReferenceNext, s.Reference)
}

func TestExtractIsPure(t *testing.T) {
	msg := "Book 'Sync' with Alice tomorrow at 3pm for 1 hour"
	first := Extract(msg, nil, refNow)
	second := Extract(msg, nil, refNow)
	assert.Equal(t, first, second)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("4pm", refNow, "Europe/London")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-08T16:00:00+01:00", got.Format(time.RFC3339))

	got, err = ParseDateTime("2024-06-10 10:00", refNow, "Not/AZone")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10T10:00:00Z", got.Format(time.RFC3339))

	_, err = ParseDateTime("whenever suits", refNow, "UTC")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseInstant(t *testing.T) {
	got, err := ParseInstant("2024-06-10T10:00:00+02:00", refNow, "UTC")
	require.NoError(t, err)
	assert.True(t, time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC).Equal(got))

	got, err = ParseInstant(" tomorrow at 9am ", refNow, "UTC")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC), got)

	_, err = ParseInstant("", refNow, "UTC")
	assert.ErrorIs(t, err, ErrUnparseable)
	_, err = ParseInstant("whenever", refNow, "UTC")
	assert.ErrorIs(t, err, ErrUnparseable)
}
