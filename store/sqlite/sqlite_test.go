package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/sqlite"
)

func july() billing.Period {
	return billing.NewPeriod(billing.NewDate(2025, 7, 1), billing.NewDate(2025, 7, 31))
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedStore(t *testing.T, s *sqlite.Store) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.InsertProject(ctx, billing.Project{ID: "p1", ClientID: "c1", Name: "Atlas"}))
	require.NoError(t, s.InsertProject(ctx, billing.Project{ID: "p2", ClientID: "c2", Name: "Orion"}))
	require.NoError(t, s.InsertUser(ctx, billing.User{ID: "alice", FullName: "Alice Ng", Role: "Engineer", HourlyRate: decimal.NewFromInt(100)}))

	require.NoError(t, s.InsertTimesheet(ctx, "ts-1", "alice", billing.StatusFrozen))
	require.NoError(t, s.InsertApproval(ctx, billing.ApprovalRecord{
		ProjectID:         "p1",
		UserID:            "alice",
		PeriodStart:       july().Start,
		PeriodEnd:         july().End,
		WorkedHours:       billing.NewHours(40),
		BaseBillableHours: billing.NewHours(35),
		ManagerAdjustment: billing.NewHours(-5),
		VerifiedAt:        time.Date(2025, 7, 31, 18, 0, 0, 0, time.UTC),
		EntriesCount:      5,
	}, "ts-1", true))
}

func TestFindApprovedApprovals_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	records, err := s.FindApprovedApprovals(context.Background(), []billing.ProjectID{"p1"}, july())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, billing.UserID("alice"), rec.UserID)
	assert.True(t, rec.WorkedHours.Equal(billing.NewHours(40)))
	assert.True(t, rec.BaseBillableHours.Equal(billing.NewHours(35)))
	assert.True(t, rec.ManagerAdjustment.Equal(billing.NewHours(-5)))
	assert.Equal(t, 5, rec.EntriesCount)
	assert.Equal(t, time.Date(2025, 7, 31, 18, 0, 0, 0, time.UTC), rec.VerifiedAt)
}

func TestFindApprovedApprovals_EligibilityFilters(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	// Verified approval on a timesheet that is only submitted.
	require.NoError(t, s.InsertTimesheet(ctx, "ts-2", "alice", billing.StatusSubmitted))
	require.NoError(t, s.InsertApproval(ctx, billing.ApprovalRecord{
		ProjectID: "p1", UserID: "alice",
		PeriodStart: july().Start, PeriodEnd: july().End,
		WorkedHours:       billing.NewHours(10),
		BaseBillableHours: billing.NewHours(10),
	}, "ts-2", true))

	// Frozen timesheet without management verification.
	require.NoError(t, s.InsertTimesheet(ctx, "ts-3", "alice", billing.StatusFrozen))
	require.NoError(t, s.InsertApproval(ctx, billing.ApprovalRecord{
		ProjectID: "p1", UserID: "alice",
		PeriodStart: july().Start, PeriodEnd: july().End,
		WorkedHours:       billing.NewHours(20),
		BaseBillableHours: billing.NewHours(20),
	}, "ts-3", false))

	records, err := s.FindApprovedApprovals(ctx, []billing.ProjectID{"p1"}, july())
	require.NoError(t, err)
	assert.Len(t, records, 1, "only the frozen, verified approval counts")
}

func TestFindApprovedApprovals_PeriodFilter(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	juneOnly := billing.NewPeriod(billing.NewDate(2025, 6, 1), billing.NewDate(2025, 6, 30))
	records, err := s.FindApprovedApprovals(context.Background(), []billing.ProjectID{"p1"}, juneOnly)
	require.NoError(t, err)
	assert.Empty(t, records)

	// A wider period covering July still matches.
	halfYear := billing.NewPeriod(billing.NewDate(2025, 6, 1), billing.NewDate(2025, 12, 31))
	records, err = s.FindApprovedApprovals(context.Background(), []billing.ProjectID{"p1"}, halfYear)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFindProjects_Filters(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	all, err := s.FindProjects(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byID, err := s.FindProjects(ctx, []billing.ProjectID{"p1"}, nil)
	require.NoError(t, err)
	require.Len(t, byID, 1)
	assert.Equal(t, "Atlas", byID[0].Name)

	byClient, err := s.FindProjects(ctx, nil, []billing.ClientID{"c2"})
	require.NoError(t, err)
	require.Len(t, byClient, 1)
	assert.Equal(t, billing.ProjectID("p2"), byClient[0].ID)

	// Both filters combine with AND.
	none, err := s.FindProjects(ctx, []billing.ProjectID{"p1"}, []billing.ClientID{"c2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindTimeEntries_FiltersByTimesheetAndProject(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	require.NoError(t, s.InsertTimeEntry(ctx, billing.TimeEntry{
		TimesheetID: "ts-1", ProjectID: "p1",
		TaskID: "t-api", TaskName: "API Work",
		Date: billing.NewDate(2025, 7, 10), Hours: billing.NewHours(25),
		Billable: true, Category: billing.CategoryProject,
	}))
	require.NoError(t, s.InsertTimeEntry(ctx, billing.TimeEntry{
		TimesheetID: "ts-1", ProjectID: "p2",
		TaskID: "t-other", TaskName: "Other Project Work",
		Date: billing.NewDate(2025, 7, 11), Hours: billing.NewHours(5),
		Billable: true, Category: billing.CategoryProject,
	}))

	entries, err := s.FindTimeEntries(ctx, []billing.TimesheetID{"ts-1"}, "alice", []billing.ProjectID{"p1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, billing.TaskID("t-api"), entries[0].TaskID)
	assert.True(t, entries[0].Hours.Equal(billing.NewHours(25)))
}

func TestUpsert_SingleActiveRecordPerKey(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	key := billing.AdjustmentKey{
		ProjectID:   "p1",
		UserID:      "alice",
		PeriodStart: july().Start,
		PeriodEnd:   july().End,
		Scope:       billing.ScopeProject,
	}

	first, err := s.Upsert(ctx, key, billing.AdjustmentFields{
		AdjustmentHours:       billing.NewHours(3),
		OriginalBillableHours: billing.NewHours(35),
		AdjustedBillableHours: billing.NewHours(38),
		Reason:                "first",
		AdjustedBy:            "pm-1",
	})
	require.NoError(t, err)

	second, err := s.Upsert(ctx, key, billing.AdjustmentFields{
		AdjustmentHours:       billing.NewHours(-2),
		OriginalBillableHours: billing.NewHours(35),
		AdjustedBillableHours: billing.NewHours(33),
		Reason:                "second",
		AdjustedBy:            "pm-2",
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "concurrent commits converge on one record")
	assert.Equal(t, "second", second.Reason)
	assert.True(t, second.AdjustmentHours.Equal(billing.NewHours(-2)))

	active, err := s.ListActive(ctx, "p1", july())
	require.NoError(t, err)
	require.Len(t, active, 1)
}

func TestDelete_SoftDeletesAndAllowsRecreate(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)
	ctx := context.Background()

	key := billing.AdjustmentKey{
		ProjectID:   "p1",
		UserID:      "alice",
		PeriodStart: july().Start,
		PeriodEnd:   july().End,
		Scope:       billing.ScopeProject,
	}

	first, err := s.Upsert(ctx, key, billing.AdjustmentFields{
		AdjustmentHours:       billing.NewHours(3),
		AdjustedBillableHours: billing.NewHours(38),
		AdjustedBy:            "pm-1",
	})
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, key, "pm-1"))

	gone, err := s.FindActive(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Deleting again fails: nothing active remains.
	err = s.Delete(ctx, key, "pm-1")
	assert.ErrorIs(t, err, billing.ErrAdjustmentNotFound)

	// A fresh upsert after delete creates a new active record; the partial
	// unique index only guards non-deleted rows.
	recreated, err := s.Upsert(ctx, key, billing.AdjustmentFields{
		AdjustmentHours:       billing.NewHours(1),
		AdjustedBillableHours: billing.NewHours(36),
		AdjustedBy:            "pm-1",
	})
	require.NoError(t, err)
	assert.NotNil(t, recreated)
	assert.NotEqual(t, first.ID, recreated.ID)

	active, err := s.ListActive(ctx, "p1", july())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].AdjustedBillableHours.Equal(billing.NewHours(36)))
}

func TestFindUsers(t *testing.T) {
	s := newTestStore(t)
	seedStore(t, s)

	users, err := s.FindUsers(context.Background(), []billing.UserID{"alice", "missing"})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "Alice Ng", users[0].FullName)
	assert.True(t, users[0].HourlyRate.Equal(decimal.NewFromInt(100)))
}
