package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLead_NextSettlement(t *testing.T) {
	c1 := decimal.NewFromInt(100)
	c2 := decimal.NewFromInt(50)

	tests := []struct {
		name      string
		lead      Lead
		tranche   int
		amount    decimal.Decimal
		newStatus LeadStatus
		err       error
	}{
		{
			name:      "pending with second tranche pays commission1 and approves",
			lead:      Lead{Status: LeadPending, Commission1: c1, Commission2: c2},
			tranche:   1,
			amount:    c1,
			newStatus: LeadApproved,
		},
		{
			name:      "pending without second tranche completes",
			lead:      Lead{Status: LeadPending, Commission1: c1},
			tranche:   1,
			amount:    c1,
			newStatus: LeadCompleted,
		},
		{
			name:      "approved pays commission2 and completes",
			lead:      Lead{Status: LeadApproved, Commission1: c1, Commission2: c2, Commission1Paid: true},
			tranche:   2,
			amount:    c2,
			newStatus: LeadCompleted,
		},
		{
			name: "completed has nothing to settle",
			lead: Lead{Status: LeadCompleted, Commission1: c1, Commission2: c2, Commission1Paid: true, Commission2Paid: true},
			err:  ErrNothingToSettle,
		},
		{
			name: "rejected has nothing to settle",
			lead: Lead{Status: LeadRejected, Commission1: c1, Commission2: c2},
			err:  ErrNothingToSettle,
		},
		{
			name: "approved with commission2 already paid",
			lead: Lead{Status: LeadApproved, Commission1Paid: true, Commission2Paid: true},
			err:  ErrNothingToSettle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := tt.lead.NextSettlement()
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tranche, s.Tranche)
			assert.True(t, tt.amount.Equal(s.Amount))
			assert.Equal(t, tt.newStatus, s.NewStatus)
		})
	}
}

func TestLead_RepeatedApprovalPaysEachTrancheOnce(t *testing.T) {
	lead := Lead{Status: LeadPending, Commission1: decimal.NewFromInt(100), Commission2: decimal.NewFromInt(50)}
	paid := decimal.Zero

	for i := 0; i < 5; i++ {
		s, err := lead.NextSettlement()
		if err != nil {
			assert.ErrorIs(t, err, ErrNothingToSettle)
			continue
		}
		paid = paid.Add(s.Amount)
		lead.ApplySettlement(s)
	}

	assert.True(t, paid.Equal(decimal.NewFromInt(150)))
	assert.Equal(t, LeadCompleted, lead.Status)
	assert.True(t, lead.Commission1Paid)
	assert.True(t, lead.Commission2Paid)
}

func TestLead_StatusNeverRegresses(t *testing.T) {
	rank := map[LeadStatus]int{LeadPending: 0, LeadApproved: 1, LeadCompleted: 2, LeadRejected: 2}
	lead := Lead{Status: LeadPending, Commission1: decimal.NewFromInt(10), Commission2: decimal.NewFromInt(5)}

	prev := lead.Status
	for i := 0; i < 4; i++ {
		if s, err := lead.NextSettlement(); err == nil {
			lead.ApplySettlement(s)
		}
		assert.GreaterOrEqual(t, rank[lead.Status], rank[prev])
		prev = lead.Status
	}
	assert.ErrorIs(t, lead.Reject("late"), ErrLeadNotRejectable)
	assert.Equal(t, LeadCompleted, lead.Status)
}

func TestLead_Reject(t *testing.T) {
	t.Run("from approved keeps paid flags", func(t *testing.T) {
		lead := Lead{Status: LeadApproved, Commission1Paid: true}

		require.NoError(t, lead.Reject("duplicate customer"))
		assert.Equal(t, LeadRejected, lead.Status)
		assert.Equal(t, "duplicate customer", lead.RejectionReason)
		assert.True(t, lead.Commission1Paid)
	})

	t.Run("terminal statuses refuse", func(t *testing.T) {
		for _, st := range []LeadStatus{LeadCompleted, LeadRejected} {
			lead := Lead{Status: st}
			assert.ErrorIs(t, lead.Reject("x"), ErrLeadNotRejectable)
		}
	})
}
