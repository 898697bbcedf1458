package repository

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/mohammadpnp/member-provisioning/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type MemberQueryRepository struct {
	db *gorm.DB
}

func NewMemberQueryRepository(db *gorm.DB) *MemberQueryRepository {
	return &MemberQueryRepository{db: db}
}

func (r *MemberQueryRepository) GetByID(ctx context.Context, tenantID, memberID string) (*domain.Member, error) {
	var row models.Member

	err := r.db.WithContext(ctx).
		First(&row, "tenant_id = ? AND id = ?", tenantID, memberID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrMemberNotFound
		}
		return nil, fmt.Errorf("get member by id: %w", err)
	}

	return toDomainMember(row), nil
}

func toDomainMember(row models.Member) *domain.Member {
	return &domain.Member{
		ID:           row.ID,
		TenantID:     row.TenantID,
		Name:         row.Name,
		Email:        derefText(row.Email),
		Username:     derefText(row.Username),
		Role:         domain.Role(row.Role),
		Department:   row.Department,
		Position:     row.Position,
		Shift:        row.Shift,
		EmployeeID:   derefText(row.EmployeeID),
		PersonID:     row.PersonID,
		ManagerID:    derefText(row.ManagerID),
		WorkerType:   domain.WorkerType(row.WorkerType),
		PasswordHash: row.PasswordHash,
		PIN:          row.PIN,
		Status:       domain.Status(row.Status),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}

func derefText(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
