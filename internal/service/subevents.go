package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Shivanand-hulikatti/seminar-registration/internal/model"
	"github.com/Shivanand-hulikatti/seminar-registration/internal/repository"
	"github.com/google/uuid"
)

// SubeventService administers subevents. Exactly one subevent is implicit
// once any subevent exists.
type SubeventService struct {
	tx     repository.TxRunner
	logger *slog.Logger
}

// NewSubeventService constructs a SubeventService.
func NewSubeventService(tx repository.TxRunner, logger *slog.Logger) *SubeventService {
	return &SubeventService{tx: tx, logger: logger}
}

// List returns all subevents, the implicit one first.
func (s *SubeventService) List(ctx context.Context) ([]model.Subevent, error) {
	var subevents []model.Subevent
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		var err error
		subevents, err = uow.Subevents(ctx)
		return err
	})
	return subevents, err
}

// Create inserts a subevent. The first subevent becomes the implicit one.
func (s *SubeventService) Create(ctx context.Context, req model.SubeventRequest) (*model.Subevent, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: subevent name is required", ErrInvalidInput)
	}
	if req.Fee < 0 {
		return nil, fmt.Errorf("%w: fee must not be negative", ErrInvalidInput)
	}
	if req.Capacity != nil && *req.Capacity < 0 {
		return nil, fmt.Errorf("%w: capacity must not be negative", ErrInvalidInput)
	}

	sub := model.Subevent{
		ID:               uuid.New(),
		Name:             name,
		Fee:              req.Fee,
		Capacity:         req.Capacity,
		RegisterableFrom: req.RegisterableFrom,
		RegisterableTo:   req.RegisterableTo,
	}
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		existing, err := uow.Subevents(ctx)
		if err != nil {
			return err
		}
		sub.Implicit = len(existing) == 0
		return uow.SaveSubevent(ctx, sub)
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "subevent created", "subevent_id", sub.ID, "name", sub.Name, "implicit", sub.Implicit)
	return &sub, nil
}

// SetImplicit moves the implicit flag to id.
func (s *SubeventService) SetImplicit(ctx context.Context, id uuid.UUID) (*model.Subevent, error) {
	var target model.Subevent
	err := s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		found, err := uow.SubeventsByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		target = found[0]
		if target.Implicit {
			return nil
		}
		current, err := uow.ImplicitSubevent(ctx)
		if err == nil {
			current.Implicit = false
			if err := uow.SaveSubevent(ctx, current); err != nil {
				return err
			}
		}
		target.Implicit = true
		return uow.SaveSubevent(ctx, target)
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}

// Delete removes a subevent. The implicit subevent cannot be deleted.
func (s *SubeventService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.tx.RunInTx(ctx, func(ctx context.Context, uow repository.UnitOfWork) error {
		found, err := uow.SubeventsByIDs(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		if found[0].Implicit {
			return ErrImplicitSubevent
		}
		return uow.DeleteSubevent(ctx, id)
	})
}
