/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract. Hours cross
  the wire as float64 rounded to two decimals; all internal arithmetic
  stays decimal.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request structs carry go-playground/validator tags; handlers run the
  validator before touching the engine.
*/
package api

import (
	"time"

	"github.com/warp/billing-engine/billing"
)

// =============================================================================
// BILLING REPORT
// =============================================================================

type TaskBillingDTO struct {
	TaskID           string  `json:"task_id,omitempty"`
	TaskName         string  `json:"task_name"`
	TotalHours       float64 `json:"total_hours"`
	BillableHours    float64 `json:"billable_hours"`
	NonBillableHours float64 `json:"non_billable_hours"`
	Amount           float64 `json:"amount"`
}

type ResourceBillingDTO struct {
	UserID               string           `json:"user_id"`
	FullName             string           `json:"full_name"`
	Role                 string           `json:"role,omitempty"`
	WorkedHours          float64          `json:"worked_hours"`
	ManagerAdjustment    float64          `json:"manager_adjustment"`
	BaseBillableHours    float64          `json:"base_billable_hours"`
	ManagementAdjustment float64          `json:"management_adjustment"`
	FinalBillableHours   float64          `json:"final_billable_hours"`
	NonBillableHours     float64          `json:"non_billable_hours"`
	HourlyRate           float64          `json:"hourly_rate"`
	TotalAmount          float64          `json:"total_amount"`
	AdjustedAt           *string          `json:"adjusted_at,omitempty"`
	Tasks                []TaskBillingDTO `json:"tasks"`
}

type VerificationInfoDTO struct {
	TotalWorkedHours       float64 `json:"total_worked_hours"`
	TotalBillableHours     float64 `json:"total_billable_hours"`
	TotalManagerAdjustment float64 `json:"total_manager_adjustment"`
	ResourceCount          int     `json:"resource_count"`
	LastVerifiedAt         string  `json:"last_verified_at,omitempty"`
}

type ProjectBillingDTO struct {
	ProjectID        string               `json:"project_id"`
	ProjectName      string               `json:"project_name"`
	ClientID         string               `json:"client_id,omitempty"`
	PeriodStart      string               `json:"period_start"`
	PeriodEnd        string               `json:"period_end"`
	TotalHours       float64              `json:"total_hours"`
	BillableHours    float64              `json:"billable_hours"`
	NonBillableHours float64              `json:"non_billable_hours"`
	TotalAmount      float64              `json:"total_amount"`
	Resources        []ResourceBillingDTO `json:"resources"`
	Verification     *VerificationInfoDTO `json:"verification_info,omitempty"`
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

type CommitAdjustmentRequest struct {
	ProjectID     string  `json:"project_id" validate:"required"`
	UserID        string  `json:"user_id" validate:"required"`
	PeriodStart   string  `json:"period_start" validate:"required"`
	PeriodEnd     string  `json:"period_end" validate:"required"`
	BillableHours float64 `json:"billable_hours" validate:"min=0"`
	Reason        string  `json:"reason" validate:"required"`
	AdjustedBy    string  `json:"adjusted_by" validate:"required"`
}

type AdjustmentDTO struct {
	ID                    string  `json:"id"`
	ProjectID             string  `json:"project_id"`
	UserID                string  `json:"user_id"`
	PeriodStart           string  `json:"period_start"`
	PeriodEnd             string  `json:"period_end"`
	Scope                 string  `json:"scope"`
	AdjustmentHours       float64 `json:"adjustment_hours"`
	OriginalBillableHours float64 `json:"original_billable_hours"`
	AdjustedBillableHours float64 `json:"adjusted_billable_hours"`
	Reason                string  `json:"reason,omitempty"`
	AdjustedBy            string  `json:"adjusted_by"`
	AdjustedAt            string  `json:"adjusted_at"`
}

// =============================================================================
// DISTRIBUTION PREVIEW
// =============================================================================

type DistributeRequest struct {
	ProjectID           string  `json:"project_id" validate:"required"`
	PeriodStart         string  `json:"period_start" validate:"required"`
	PeriodEnd           string  `json:"period_end" validate:"required"`
	TargetTotalBillable float64 `json:"target_total_billable" validate:"min=0"`
}

type BillableTargetDTO struct {
	UserID       string  `json:"user_id"`
	CurrentHours float64 `json:"current_hours"`
	WorkedHours  float64 `json:"worked_hours"`
	TargetHours  float64 `json:"target_hours"`
	Delta        float64 `json:"delta"`
	Capped       bool    `json:"capped"`
}

type DistributionResultDTO struct {
	Targets          []BillableTargetDTO `json:"targets"`
	CurrentTotal     float64             `json:"current_total"`
	RequestedTotal   float64             `json:"requested_total"`
	AllocatedTotal   float64             `json:"allocated_total"`
	UnallocatedHours float64             `json:"unallocated_hours"`
}

// =============================================================================
// SCENARIOS & ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func round2(h billing.Hours) float64 {
	f, _ := h.Value.Round(2).Float64()
	return f
}

func toProjectBillingDTO(p billing.ProjectBillingData) ProjectBillingDTO {
	dto := ProjectBillingDTO{
		ProjectID:        string(p.ProjectID),
		ProjectName:      p.ProjectName,
		ClientID:         string(p.ClientID),
		PeriodStart:      p.Period.Start.String(),
		PeriodEnd:        p.Period.End.String(),
		TotalHours:       round2(p.TotalHours),
		BillableHours:    round2(p.BillableHours),
		NonBillableHours: round2(p.NonBillableHours),
		Resources:        make([]ResourceBillingDTO, len(p.Resources)),
	}
	dto.TotalAmount, _ = p.TotalAmount.Round(2).Float64()

	for i, r := range p.Resources {
		dto.Resources[i] = toResourceBillingDTO(r)
	}
	if p.Verification != nil {
		v := VerificationInfoDTO{
			TotalWorkedHours:       round2(p.Verification.TotalWorkedHours),
			TotalBillableHours:     round2(p.Verification.TotalBillableHours),
			TotalManagerAdjustment: round2(p.Verification.TotalManagerAdjustment),
			ResourceCount:          p.Verification.ResourceCount,
		}
		if !p.Verification.LastVerifiedAt.IsZero() {
			v.LastVerifiedAt = p.Verification.LastVerifiedAt.Format(time.RFC3339)
		}
		dto.Verification = &v
	}
	return dto
}

func toResourceBillingDTO(r billing.ResourceBillingData) ResourceBillingDTO {
	dto := ResourceBillingDTO{
		UserID:               string(r.UserID),
		FullName:             r.FullName,
		Role:                 r.Role,
		WorkedHours:          round2(r.WorkedHours),
		ManagerAdjustment:    round2(r.ManagerAdjustment),
		BaseBillableHours:    round2(r.BaseBillableHours),
		ManagementAdjustment: round2(r.ManagementAdjustment),
		FinalBillableHours:   round2(r.FinalBillableHours),
		NonBillableHours:     round2(r.NonBillableHours),
		Tasks:                make([]TaskBillingDTO, len(r.Tasks)),
	}
	dto.HourlyRate, _ = r.HourlyRate.Round(2).Float64()
	dto.TotalAmount, _ = r.TotalAmount.Round(2).Float64()
	if r.AdjustedAt != nil {
		s := r.AdjustedAt.Format(time.RFC3339)
		dto.AdjustedAt = &s
	}
	for i, t := range r.Tasks {
		amount, _ := t.Amount.Round(2).Float64()
		dto.Tasks[i] = TaskBillingDTO{
			TaskID:           string(t.TaskID),
			TaskName:         t.TaskName,
			TotalHours:       round2(t.TotalHours),
			BillableHours:    round2(t.BillableHours),
			NonBillableHours: round2(t.NonBillableHours),
			Amount:           amount,
		}
	}
	return dto
}

func toAdjustmentDTO(a billing.Adjustment) AdjustmentDTO {
	return AdjustmentDTO{
		ID:                    string(a.ID),
		ProjectID:             string(a.ProjectID),
		UserID:                string(a.UserID),
		PeriodStart:           a.PeriodStart.String(),
		PeriodEnd:             a.PeriodEnd.String(),
		Scope:                 string(a.Scope),
		AdjustmentHours:       round2(a.AdjustmentHours),
		OriginalBillableHours: round2(a.OriginalBillableHours),
		AdjustedBillableHours: round2(a.AdjustedBillableHours),
		Reason:                a.Reason,
		AdjustedBy:            a.AdjustedBy,
		AdjustedAt:            a.AdjustedAt.Format(time.RFC3339),
	}
}

func toDistributionResultDTO(res billing.DistributionResult) DistributionResultDTO {
	dto := DistributionResultDTO{
		Targets:          make([]BillableTargetDTO, len(res.Targets)),
		CurrentTotal:     round2(res.CurrentTotal),
		RequestedTotal:   round2(res.RequestedTotal),
		AllocatedTotal:   round2(res.AllocatedTotal),
		UnallocatedHours: round2(res.UnallocatedHours),
	}
	for i, t := range res.Targets {
		dto.Targets[i] = BillableTargetDTO{
			UserID:       string(t.UserID),
			CurrentHours: round2(t.CurrentHours),
			WorkedHours:  round2(t.WorkedHours),
			TargetHours:  round2(t.TargetHours),
			Delta:        round2(t.Delta()),
			Capped:       t.Capped,
		}
	}
	return dto
}
