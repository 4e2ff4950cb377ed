package handler

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"slices"

	"github.com/kindfund/kindfund/internal/config"
	"github.com/kindfund/kindfund/internal/metrics"
	"github.com/kindfund/kindfund/internal/model"
)

// DonationHooks keeps each cause's raised_amount equal to the sum of its
// completed donations. Creation is open to anonymous donors, so a new
// donation is always recorded as pending with no payment references; only
// the admin update can complete it.
func DonationHooks(m *metrics.Manager) Hooks[*model.Donation] {
	return Hooks[*model.Donation]{
		BeforeCreate: func(ctx context.Context, tx *config.Tx, d *model.Donation) error {
			d.Status = model.DonationPending
			d.PaymentID = ""
			d.OrderID = ""
			return applyContribution(ctx, tx, nil, d)
		},
		BeforeUpdate: func(ctx context.Context, tx *config.Tx, old, updated *model.Donation) error {
			return applyContribution(ctx, tx, old, updated)
		},
		BeforeDelete: func(ctx context.Context, tx *config.Tx, old *model.Donation) error {
			return applyContribution(ctx, tx, old, nil)
		},
		AfterCreate: func(d *model.Donation) {
			m.ObserveDonation(d.Status)
		},
	}
}

// contribution is what d adds to its cause's raised amount.
func contribution(d *model.Donation) float64 {
	if d == nil || d.CauseID == "" || d.Status != model.DonationCompleted {
		return 0
	}
	return d.Amount
}

// applyContribution moves the raised amount from old's cause to updated's
// cause. Either side may be nil. A referenced cause that does not exist is
// a 404 for new references only; a cause deleted since the donation was
// recorded is skipped.
func applyContribution(ctx context.Context, tx *config.Tx, old, updated *model.Donation) error {
	if updated != nil && updated.CauseID != "" && (old == nil || old.CauseID != updated.CauseID) {
		var cause model.Cause
		if err := tx.GetDocument(ctx, model.CollectionCauses, updated.CauseID, &cause); err != nil {
			if errors.Is(err, config.ErrNotFound) {
				return errorf(http.StatusNotFound, "Cause %q not found", updated.CauseID)
			}
			return err
		}
	}

	deltas := map[string]float64{}
	if c := contribution(old); c != 0 {
		deltas[old.CauseID] -= c
	}
	if c := contribution(updated); c != 0 {
		deltas[updated.CauseID] += c
	}

	// Lock causes in a fixed order so two moves between the same pair
	// cannot deadlock.
	for _, causeID := range slices.Sorted(maps.Keys(deltas)) {
		delta := deltas[causeID]
		if delta == 0 {
			continue
		}
		var cause model.Cause
		if err := tx.GetDocumentForUpdate(ctx, model.CollectionCauses, causeID, &cause); err != nil {
			if errors.Is(err, config.ErrNotFound) {
				continue
			}
			return err
		}
		cause.RaisedAmount += delta
		if cause.RaisedAmount < 0 {
			cause.RaisedAmount = 0
		}
		if err := tx.UpdateDocument(ctx, model.CollectionCauses, &cause); err != nil {
			return err
		}
	}
	return nil
}
