//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"bloodbank/internal/lifecycle/lifecycletest"
	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/allocation"
	"bloodbank/internal/lifecycle/store/postgres"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *postgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = postgres.New(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background()))
}

func (s *PostgresStoreSuite) tx(fn func(ctx context.Context, repos ports.Repositories) error) error {
	return s.store.RunInTx(context.Background(), lifecycletest.Org, fn)
}

func (s *PostgresStoreSuite) seedUnit() *models.BloodUnit {
	donation := models.Donation{
		ID:          id.DonationID(uuid.New()),
		DonorID:     id.DonorID(uuid.New()),
		VolumeML:    450,
		CollectedAt: lifecycletest.Collected,
	}
	u, err := models.NewBloodUnit(id.NewUnitID(), lifecycletest.Org, "BU-2026-000001", donation, models.GroupOPos, 450, lifecycletest.Collected)
	s.Require().NoError(err)
	s.Require().NoError(s.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Units.Create(ctx, u)
	}))
	return u
}

func (s *PostgresStoreSuite) seedReady(unit *models.BloodUnit, n int) []*models.Component {
	var out []*models.Component
	s.Require().NoError(s.tx(func(ctx context.Context, repos ports.Repositories) error {
		for i := 0; i < n; i++ {
			c := &models.Component{
				ID:         id.NewComponentID(),
				UnitID:     unit.ID,
				Label:      "BU-2026-000001-PRC1",
				Type:       models.TypePRC,
				BloodGroup: models.GroupOPos,
				VolumeML:   200,
				ExpiresAt:  lifecycletest.Collected.AddDate(0, 0, 42+i),
				State:      models.StateReadyToUse,
				CreatedAt:  lifecycletest.Collected,
				UpdatedAt:  lifecycletest.Collected,
			}
			if err := repos.Components.Create(ctx, c); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	}))
	return out
}

func (s *PostgresStoreSuite) TestSecondUnitForDonationIsRejected() {
	u := s.seedUnit()
	dup := *u
	dup.ID = id.NewUnitID()
	err := s.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Units.Create(ctx, &dup)
	})
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestOnlyOneOpenQuarantinePerTarget() {
	u := s.seedUnit()
	target := models.UnitTarget(u.ID)
	now := lifecycletest.Collected.Add(time.Hour)

	s.Require().NoError(s.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Quarantines.Create(ctx, models.NewQuarantine(lifecycletest.Org, target, models.QuarantineReactive, models.StateCollected, lifecycletest.Actor, now))
	}))
	err := s.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Quarantines.Create(ctx, models.NewQuarantine(lifecycletest.Org, target, models.QuarantineInvestigation, models.StateCollected, lifecycletest.Actor, now))
	})
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	s.Require().NoError(s.tx(func(ctx context.Context, repos ports.Repositories) error {
		q, err := repos.Quarantines.FindOpen(ctx, target)
		if err != nil {
			return err
		}
		q.ApplyResolution(models.OutcomeNonReactive, models.DispositionRelease, lifecycletest.Actor, now)
		return repos.Quarantines.Update(ctx, q)
	}))
	s.Require().NoError(s.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Quarantines.Create(ctx, models.NewQuarantine(lifecycletest.Org, target, models.QuarantineInvestigation, models.StateCollected, lifecycletest.Actor, now))
	}))
}

func (s *PostgresStoreSuite) TestOtherOrgRowsAreInvisible() {
	u := s.seedUnit()
	err := s.store.RunInTx(context.Background(), "org-other", func(ctx context.Context, repos ports.Repositories) error {
		_, err := repos.Units.Get(ctx, u.ID)
		return err
	})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestConcurrentAllocationNeverDoubleReserves() {
	const (
		callers    = 12
		perRequest = 2
		pool       = 10
	)
	u := s.seedUnit()
	s.seedReady(u, pool)

	svc, err := allocation.New(s.store, 2*callers)
	s.Require().NoError(err)
	ctx := lifecycletest.Context(lifecycletest.Collected.Add(24 * time.Hour))

	requests := make([]id.BloodRequestID, callers)
	for i := range requests {
		req, err := svc.SubmitRequest(ctx, allocation.SubmitRequest{
			BloodGroup: "O+", ProductType: "prc", Quantity: perRequest,
		})
		s.Require().NoError(err)
		requests[i] = req.ID
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved = map[id.ComponentID]int{}
		wins     int
	)
	for _, requestID := range requests {
		wg.Add(1)
		go func(requestID id.BloodRequestID) {
			defer wg.Done()
			alloc, err := svc.Allocate(ctx, requestID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.True(dErrors.HasCode(err, dErrors.CodeInsufficientInventory), "unexpected error: %v", err)
				return
			}
			wins++
			for _, componentID := range alloc.ComponentIDs {
				reserved[componentID]++
			}
		}(requestID)
	}
	wg.Wait()

	s.Equal(pool/perRequest, wins)
	s.Len(reserved, pool)
	for componentID, n := range reserved {
		s.Equal(1, n, "component %s reserved %d times", componentID, n)
	}
}
