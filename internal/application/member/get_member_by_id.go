package member

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
)

type GetMemberByIDInput struct {
	TenantID string
	ID       string
}

// GetMemberByIDOutput never carries credential material.
type GetMemberByIDOutput struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Username   string `json:"username,omitempty"`
	Role       string `json:"role"`
	Department string `json:"department,omitempty"`
	Position   string `json:"position,omitempty"`
	Shift      string `json:"shift,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	PersonID   string `json:"person_id"`
	ManagerID  string `json:"manager_id,omitempty"`
	WorkerType string `json:"worker_type"`
	Status     string `json:"status"`
}

type GetMemberByID interface {
	Execute(ctx context.Context, in GetMemberByIDInput) (GetMemberByIDOutput, error)
}

type getMemberByID struct {
	repo domain.MemberQueryRepository
}

func NewGetMemberByID(repo domain.MemberQueryRepository) GetMemberByID {
	return &getMemberByID{repo: repo}
}

func (uc *getMemberByID) Execute(ctx context.Context, in GetMemberByIDInput) (GetMemberByIDOutput, error) {
	if in.TenantID == "" {
		return GetMemberByIDOutput{}, ErrMissingTenant
	}
	if _, err := uuid.Parse(in.ID); err != nil {
		return GetMemberByIDOutput{}, ErrInvalidMemberID
	}

	m, err := uc.repo.GetByID(ctx, in.TenantID, in.ID)
	if err != nil {
		if errors.Is(err, domain.ErrMemberNotFound) {
			return GetMemberByIDOutput{}, ErrMemberNotFound
		}
		return GetMemberByIDOutput{}, fmt.Errorf("%w: %v", ErrGetMemberByID, err)
	}

	return GetMemberByIDOutput{
		ID:         m.ID,
		Name:       m.Name,
		Email:      m.Email,
		Username:   m.Username,
		Role:       string(m.Role),
		Department: m.Department,
		Position:   m.Position,
		Shift:      m.Shift,
		EmployeeID: m.EmployeeID,
		PersonID:   m.PersonID,
		ManagerID:  m.ManagerID,
		WorkerType: string(m.WorkerType),
		Status:     string(m.Status),
	}, nil
}
