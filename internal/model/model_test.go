package model

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestCategoryFromFraction(t *testing.T) {
	tests := []struct {
		id   int
		want string
	}{
		{0, "Restmüll"},
		{1, "Papier"},
		{2, "Gelbe Tonne"},
		{3, "Biotonne"},
		{4, "Weihnachtsbaum"},
		{5, "Unbekannt"},
		{-3, "Unbekannt"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.id), func(t *testing.T) {
			got := CategoryFromFraction(tt.id).String()
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("label mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDaysUntil(t *testing.T) {
	today := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	e := CollectionEvent{Date: today.AddDate(0, 0, 5)}
	if diff := cmp.Diff(5, e.DaysUntil(today)); diff != "" {
		t.Errorf("DaysUntil mismatch (-want +got):\n%s", diff)
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"timeout", fmt.Errorf("get x: %w", ErrTimeout), "timeout"},
		{"unreachable", fmt.Errorf("get x: %w", ErrUnreachable), "unreachable"},
		{"invalid", fmt.Errorf("decode: %w", ErrInvalidResponse), "invalid_response"},
		{"not found", fmt.Errorf("street %q: %w", "x", ErrNotFound), "not_found"},
		{"auth", ErrAuthFailed, "auth"},
		{"consistency", ErrConsistency, "consistency"},
		{"unclassified", context.Canceled, "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Kind(tt.err)); diff != "" {
				t.Errorf("Kind mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAppointmentNormalized(t *testing.T) {
	cet := time.FixedZone("CET", 3600)
	start := time.Date(2026, 10, 20, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   Appointment
		want Appointment
	}{
		{
			name: "timed without end",
			in:   Appointment{Title: "Zahnarzt", Start: start},
			want: Appointment{
				Title:     "Zahnarzt",
				Start:     start,
				End:       start.Add(time.Hour),
				StartDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC),
				StartTime: "00:30",
				EndTime:   "01:30",
			},
		},
		{
			name: "end before start is clamped",
			in:   Appointment{Title: "x", Start: start, End: start.Add(-time.Hour)},
			want: Appointment{
				Title:     "x",
				Start:     start,
				End:       start,
				StartDate: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC),
				StartTime: "00:30",
				EndTime:   "00:30",
			},
		},
		{
			name: "whole day without end and title",
			in:   Appointment{Start: time.Date(2026, 10, 22, 0, 0, 0, 0, cet), WholeDay: true},
			want: Appointment{
				Title:     DefaultTitle,
				Start:     time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
				End:       time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
				StartDate: time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
				EndDate:   time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC),
				WholeDay:  true,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalized(time.UTC, cet)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalized mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
