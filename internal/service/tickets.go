package service

import (
	"context"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/clock"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

// TicketService records admission scans.
type TicketService struct {
	tx    repository.TxRunner
	clock clock.Clock
}

// NewTicketService constructs a TicketService.
func NewTicketService(tx repository.TxRunner, clk clock.Clock) *TicketService {
	return &TicketService{tx: tx, clock: clk}
}

// CheckTicket records that the user entered the subevent and returns the
// earlier scans of the same ticket, so the gate can flag a second entry.
func (s *TicketService) CheckTicket(ctx context.Context, userID, subeventID uuid.UUID) (*model.TicketCheckResult, error) {
	var result model.TicketCheckResult
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		usr, err := uow.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if _, err := uow.SubeventsByIDs(ctx, []uuid.UUID{subeventID}); err != nil {
			return err
		}
		if !usr.HasSubevent(subeventID) {
			return ErrNotAttending
		}

		previous, err := uow.TicketChecks(ctx, userID, subeventID)
		if err != nil {
			return err
		}
		check := model.TicketCheck{
			ID:         uuid.New(),
			UserID:     userID,
			SubeventID: subeventID,
			CheckedAt:  s.clock.Now().UTC(),
		}
		if err := uow.InsertTicketCheck(ctx, &check); err != nil {
			return err
		}
		if previous == nil {
			previous = []model.TicketCheck{}
		}
		result = model.TicketCheckResult{Check: check, Previous: previous}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
