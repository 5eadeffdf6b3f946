package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestDecodeRow_Defaults(t *testing.T) {
	tests := []struct {
		name  string
		row   []string
		check func(t *testing.T, got Task)
	}{
		{
			name: "unparsable priority falls back to low",
			row:  []string{"1001", "Draft contract", "Luke", "", "", "", "Assigned", "urgent"},
			check: func(t *testing.T, got Task) {
				assert.Equal(t, PriorityLow, got.Priority)
			},
		},
		{
			name: "unparsable dates read as nil",
			row:  []string{"1001", "Draft contract", "Luke", "soon", "31/31/2024", "n/a"},
			check: func(t *testing.T, got Task) {
				assert.Nil(t, got.StartDate)
				assert.Nil(t, got.DueDate)
				assert.Nil(t, got.CompletedDate)
			},
		},
		{
			name: "unparsable hours read as zero",
			row:  []string{"1001", "Draft contract", "Luke", "", "", "", "Assigned", "1", "two"},
			check: func(t *testing.T, got Task) {
				assert.InDelta(t, 0.0, got.HoursSpent, 0.0001)
			},
		},
		{
			name: "short row is padded",
			row:  []string{"1001", "Draft contract"},
			check: func(t *testing.T, got Task) {
				assert.Equal(t, int64(1001), got.ID)
				assert.Equal(t, "Draft contract", got.Title)
				assert.Equal(t, StatusAssigned, got.Status)
				assert.Equal(t, PriorityLow, got.Priority)
				assert.Empty(t, got.Comments)
				assert.True(t, got.LastModified.IsZero())
				assert.Equal(t, int64(0), got.Revision)
			},
		},
		{
			name: "long row is truncated",
			row:  append(EncodeRow(Task{ID: 7, Title: "x", Status: StatusOnHold, Priority: PriorityHigh}), "extra", "cells"),
			check: func(t *testing.T, got Task) {
				assert.Equal(t, int64(7), got.ID)
				assert.Equal(t, StatusOnHold, got.Status)
			},
		},
		{
			name: "float formatted ids and priorities",
			row:  []string{"1001.0", "t", "Luke", "", "", "", "In Progress", "2.0", "1.5"},
			check: func(t *testing.T, got Task) {
				assert.Equal(t, int64(1001), got.ID)
				assert.Equal(t, PriorityMedium, got.Priority)
				assert.InDelta(t, 1.5, got.HoursSpent, 0.0001)
			},
		},
		{
			name: "legacy created status reads as assigned",
			row:  []string{"1", "t", "Luke", "", "", "", "Created"},
			check: func(t *testing.T, got Task) {
				assert.Equal(t, StatusAssigned, got.Status)
			},
		},
		{
			name: "newline delimited comments",
			row:  []string{"1", "t", "Luke", "", "", "", "", "", "", "", "first\n\nsecond"},
			check: func(t *testing.T, got Task) {
				require.Len(t, got.Comments, 2)
				assert.Equal(t, "first", got.Comments[0].Text)
				assert.Equal(t, "second", got.Comments[1].Text)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				tt.check(t, DecodeRow(tt.row))
			})
		})
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	created := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	in := Task{
		ID:            1001,
		Title:         "Draft contract",
		AssignedTo:    "Luke",
		StartDate:     date(2024, 3, 1),
		DueDate:       date(2024, 3, 15),
		CompletedDate: nil,
		Status:        StatusAssigned,
		Priority:      PriorityHigh,
		HoursSpent:    0,
		Description:   "Initial draft for the client",
		Comments: []Comment{
			{User: "Manager", Text: "please start soon", Time: created},
		},
		ExternalLink: "https://docs.example.com/contract",
		CreatedBy:    "Manager",
		LastModified: created,
		CreatedAt:    created,
		Revision:     3,
	}

	row := EncodeRow(in)
	require.Len(t, row, len(Columns))
	assert.Equal(t, "2024-03-15", row[ColDueDate])
	assert.Equal(t, "2024-03-01 09:30:00", row[ColCreatedAt])

	out := DecodeRow(row)
	assert.Equal(t, in, out)
}

func TestEncodeRow_TruncatesTimestampsToStoreFormat(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 15, 999_000_000, time.UTC)
	out := DecodeRow(EncodeRow(Task{ID: 1, Title: "t", CreatedAt: ts, LastModified: ts}))
	assert.Equal(t, ts.Truncate(time.Second), out.CreatedAt)
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"1", PriorityHigh},
		{"2", PriorityMedium},
		{"3", PriorityLow},
		{"High", PriorityHigh},
		{"medium", PriorityMedium},
		{"", PriorityLow},
		{"0", PriorityLow},
		{"4", PriorityLow},
		{"1.5", PriorityLow},
		{"abc", PriorityLow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParsePriority(tt.in))
		})
	}
}

func TestParsePriorityStrict(t *testing.T) {
	for in, want := range map[string]Priority{"1": PriorityHigh, " 3 ": PriorityLow, "Medium": PriorityMedium} {
		got, err := ParsePriorityStrict(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "0", "9", "1.5", "urgent"} {
		_, err := ParsePriorityStrict(in)
		assert.ErrorIs(t, err, ErrValidation, in)
	}
}

func TestParseID(t *testing.T) {
	assert.Equal(t, int64(1709283600000), ParseID("1709283600000"))
	assert.Equal(t, int64(42), ParseID(" 42.0 "))
	assert.Zero(t, ParseID("42.5"))
	assert.Zero(t, ParseID("-7"))
	assert.Zero(t, ParseID(""))
}

func TestParseDate(t *testing.T) {
	assert.Equal(t, date(2024, 5, 2), ParseDate("2024-05-02"))
	assert.Equal(t, date(2024, 5, 2), ParseDate("2024-05-02 13:14:15"))
	assert.Equal(t, date(2024, 5, 2), ParseDate("05/02/2024"))
	assert.Nil(t, ParseDate(""))
	assert.Nil(t, ParseDate("tomorrow"))
}
