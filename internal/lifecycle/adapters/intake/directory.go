// Package intake adapts the donation intake subsystem to ports.DonationSource.
package intake

import (
	"context"
	"fmt"
	"sync"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

// Directory is an in-process donation source fed by DonationCompleted
// hand-offs. Used when intake runs in the same process and in tests.
type Directory struct {
	mu        sync.RWMutex
	donations map[id.DonationID]models.Donation
}

func NewDirectory() *Directory {
	return &Directory{donations: make(map[id.DonationID]models.Donation)}
}

var _ ports.DonationSource = (*Directory)(nil)

// Put records a completed donation.
func (d *Directory) Put(donation models.Donation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.donations[donation.ID] = donation
}

func (d *Directory) FindDonation(_ context.Context, org id.OrgID, donationID id.DonationID) (*models.Donation, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	donation, ok := d.donations[donationID]
	if !ok || donation.OrgID != org {
		return nil, fmt.Errorf("donation %s: %w", donationID, sentinel.ErrNotFound)
	}
	return &donation, nil
}
