package billing_test

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/warp/billing-engine/billing"
	"github.com/warp/billing-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func hrs(v float64) billing.Hours {
	return billing.NewHours(v)
}

func july2025() billing.Period {
	return billing.NewPeriod(billing.NewDate(2025, 7, 1), billing.NewDate(2025, 7, 31))
}

func verifiedAt(day int) time.Time {
	return time.Date(2025, 7, day, 18, 0, 0, 0, time.UTC)
}

// newSeededStore builds an in-memory store with one project, two verified
// resources, and per-task entries. The numbers are chosen so every derived
// value is exact:
//
//	alice: worked 40, manager -5  -> base 35, rate 100
//	bob:   worked 30, manager  0  -> base 30, rate 80
func newSeededStore() *memory.Store {
	s := memory.New()

	s.AddProject(billing.Project{ID: "p1", ClientID: "c1", Name: "Atlas"})
	s.AddUser(billing.User{ID: "alice", FullName: "Alice Ng", Role: "Engineer", HourlyRate: decimal.NewFromInt(100)})
	s.AddUser(billing.User{ID: "bob", FullName: "Bob Osei", Role: "Analyst", HourlyRate: decimal.NewFromInt(80)})

	s.AddTimesheet(memory.Timesheet{ID: "ts-alice", UserID: "alice", Status: billing.StatusFrozen})
	s.AddTimesheet(memory.Timesheet{ID: "ts-bob", UserID: "bob", Status: billing.StatusBilled})

	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "alice",
			PeriodStart:       july2025().Start,
			PeriodEnd:         july2025().End,
			WorkedHours:       hrs(40),
			BaseBillableHours: hrs(35),
			ManagerAdjustment: hrs(-5),
			VerifiedAt:        verifiedAt(31),
			EntriesCount:      5,
		},
		TimesheetID:        "ts-alice",
		ManagementVerified: true,
	})
	s.AddApproval(memory.Approval{
		ApprovalRecord: billing.ApprovalRecord{
			ProjectID:         "p1",
			UserID:            "bob",
			PeriodStart:       july2025().Start,
			PeriodEnd:         july2025().End,
			WorkedHours:       hrs(30),
			BaseBillableHours: hrs(30),
			ManagerAdjustment: hrs(0),
			VerifiedAt:        verifiedAt(30),
			EntriesCount:      4,
		},
		TimesheetID:        "ts-bob",
		ManagementVerified: true,
	})

	s.AddTimeEntry(billing.TimeEntry{
		TimesheetID: "ts-alice", ProjectID: "p1",
		TaskID: "t-api", TaskName: "API Work",
		Date: billing.NewDate(2025, 7, 10), Hours: hrs(25),
		Billable: true, Category: billing.CategoryProject,
	})
	s.AddTimeEntry(billing.TimeEntry{
		TimesheetID: "ts-alice", ProjectID: "p1",
		TaskID: "t-docs", TaskName: "Documentation",
		Date: billing.NewDate(2025, 7, 15), Hours: hrs(15),
		Billable: false, Category: billing.CategoryProject,
	})
	s.AddTimeEntry(billing.TimeEntry{
		TimesheetID: "ts-bob", ProjectID: "p1",
		TaskID: "t-data", TaskName: "Data Prep",
		Date: billing.NewDate(2025, 7, 8), Hours: hrs(30),
		Billable: true, Category: billing.CategoryProject,
	})

	return s
}

func newBuilder(s *memory.Store) *billing.ReportBuilder {
	return billing.NewReportBuilder(s, s, s, s, s, zerolog.Nop())
}

func newCommitter(s *memory.Store) *billing.AdjustmentCommitter {
	return billing.NewAdjustmentCommitter(s, s, zerolog.Nop())
}
