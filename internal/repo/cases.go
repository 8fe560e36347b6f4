package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/matheus3301/lawdesk/internal/store"
)

// CaseRepo reads and writes case assignments.
type CaseRepo struct {
	guard *Guard
}

// NewCaseRepo creates a case repository.
func NewCaseRepo(g *Guard) *CaseRepo {
	return &CaseRepo{guard: g}
}

// Assign stores c, generating an id when missing.
func (r *CaseRepo) Assign(ctx context.Context, c *store.Case) error {
	if c.LawyerID == "" {
		return fmt.Errorf("lawyer id: %w", ErrInvalidArgument)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return r.guard.Do(ctx, "assign_case", func(ctx context.Context, b Backend) error {
		return b.AssignCase(ctx, c)
	})
}

// ListConversationIDsAssignedTo returns the conversations linked to cases
// assigned to the lawyer.
func (r *CaseRepo) ListConversationIDsAssignedTo(ctx context.Context, lawyerID string) ([]string, error) {
	var ids []string
	err := r.guard.Do(ctx, "list_assigned_conversations", func(ctx context.Context, b Backend) error {
		var err error
		ids, err = b.ListConversationIDsAssignedTo(ctx, lawyerID)
		return err
	})
	return ids, err
}
