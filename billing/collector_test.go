package billing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/memory"
)

func TestCollect_GroupsByProjectAndUser(t *testing.T) {
	s := newSeededStore()
	collector := billing.ApprovalCollector{Source: s}

	grouped, err := collector.Collect(context.Background(), []billing.ProjectID{"p1"}, july2025())
	require.NoError(t, err)
	require.Len(t, grouped, 1)

	summaries := grouped["p1"]
	require.Len(t, summaries, 2)

	// Sorted by user ID for deterministic output.
	assert.Equal(t, billing.UserID("alice"), summaries[0].UserID)
	assert.Equal(t, billing.UserID("bob"), summaries[1].UserID)

	alice := summaries[0]
	assertHours(t, 40, alice.WorkedHours)
	assertHours(t, 35, alice.BaseBillableHours)
	assertHours(t, -5, alice.ManagerAdjustment)
	assert.Equal(t, verifiedAt(31), alice.LastVerifiedAt)
	assert.Equal(t, 5, alice.EntriesCount)
}

func TestCollect_SumsMultipleApprovalsPerUser(t *testing.T) {
	s := newSeededStore()

	// A second verified weekly approval for alice inside the same period.
	s.AddTimesheet(memory.Timesheet{ID: "ts-alice-2", UserID: "alice", Status: billing.StatusFrozen})
	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "alice",
			PeriodStart:       billing.NewDate(2025, 7, 1),
			PeriodEnd:         billing.NewDate(2025, 7, 7),
			WorkedHours:       hrs(8),
			BaseBillableHours: hrs(8),
			ManagerAdjustment: hrs(0),
			VerifiedAt:        verifiedAt(7),
			EntriesCount:      1,
		},
		TimesheetID:        "ts-alice-2",
		ManagementVerified: true,
	})

	collector := billing.ApprovalCollector{Source: s}
	grouped, err := collector.Collect(context.Background(), []billing.ProjectID{"p1"}, july2025())
	require.NoError(t, err)

	alice := grouped["p1"][0]
	assertHours(t, 48, alice.WorkedHours)
	assertHours(t, 43, alice.BaseBillableHours)
	assert.Equal(t, 6, alice.EntriesCount)
	// Latest verification timestamp wins.
	assert.Equal(t, verifiedAt(31), alice.LastVerifiedAt)
}

func TestCollect_ExcludesIneligibleApprovals(t *testing.T) {
	s := newSeededStore()

	// Not management-verified: excluded even though the timesheet is frozen.
	s.AddTimesheet(memory.Timesheet{ID: "ts-carol", UserID: "carol", Status: billing.StatusFrozen})
	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "carol",
			PeriodStart:       july2025().Start,
			PeriodEnd:         july2025().End,
			WorkedHours:       hrs(60),
			BaseBillableHours: hrs(60),
		},
		TimesheetID:        "ts-carol",
		ManagementVerified: false,
	})

	// Verified but the timesheet never reached a billing-eligible status.
	s.AddTimesheet(memory.Timesheet{ID: "ts-dave", UserID: "dave", Status: billing.StatusSubmitted})
	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "dave",
			PeriodStart:       july2025().Start,
			PeriodEnd:         july2025().End,
			WorkedHours:       hrs(50),
			BaseBillableHours: hrs(50),
			VerifiedAt:        verifiedAt(20),
		},
		TimesheetID:        "ts-dave",
		ManagementVerified: true,
	})

	collector := billing.ApprovalCollector{Source: s}
	grouped, err := collector.Collect(context.Background(), []billing.ProjectID{"p1"}, july2025())
	require.NoError(t, err)

	require.Len(t, grouped["p1"], 2)
	for _, summary := range grouped["p1"] {
		assert.NotEqual(t, billing.UserID("carol"), summary.UserID)
		assert.NotEqual(t, billing.UserID("dave"), summary.UserID)
	}
}

func TestCollect_ExcludesApprovalsOutsidePeriod(t *testing.T) {
	s := newSeededStore()

	// June approval on the same timesheet: outside the requested period.
	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "alice",
			PeriodStart:       billing.NewDate(2025, 6, 1),
			PeriodEnd:         billing.NewDate(2025, 6, 30),
			WorkedHours:       hrs(100),
			BaseBillableHours: hrs(100),
			VerifiedAt:        verifiedAt(1),
		},
		TimesheetID:        "ts-alice",
		ManagementVerified: true,
	})

	collector := billing.ApprovalCollector{Source: s}
	grouped, err := collector.Collect(context.Background(), []billing.ProjectID{"p1"}, july2025())
	require.NoError(t, err)

	alice := grouped["p1"][0]
	assertHours(t, 40, alice.WorkedHours)
}

func TestCollectForUser_NotFound(t *testing.T) {
	s := newSeededStore()
	collector := billing.ApprovalCollector{Source: s}

	summary, err := collector.CollectForUser(context.Background(), "p1", "nobody", july2025())
	require.NoError(t, err)
	assert.Nil(t, summary)
}

func TestCollectForUser_Found(t *testing.T) {
	s := newSeededStore()
	collector := billing.ApprovalCollector{Source: s}

	summary, err := collector.CollectForUser(context.Background(), "p1", "alice", july2025())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assertHours(t, 35, summary.BaseBillableHours)
}
