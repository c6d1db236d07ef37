package smsparser

import "github.com/ledgermesh/ledgermesh/internal/model"

// DefaultProfiles returns a starter set of mobile-money SMS profiles,
// ordered by priority. Callers can extend or override this built-in set.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:            "mpesa-send",
			SenderAddresses: []string{"MPESA"},
			Priority:        100,
			Enabled:         true,
			Patterns: []Pattern{
				{
					Regex:     `Ksh([\d,]+\.\d{2}) sent to ([A-Za-z ]+?) (?:for account )?([A-Za-z0-9]+)? ?on`,
					Direction: model.DirectionDebit,
					Groups:    CaptureGroups{Amount: 1, Counterparty: 2, AccountHint: 3},
				},
				{
					Regex:     `Ksh([\d,]+\.\d{2}) paid to ([A-Za-z0-9 ]+) on`,
					Direction: model.DirectionDebit,
					Groups:    CaptureGroups{Amount: 1, Counterparty: 2},
				},
			},
		},
		{
			Name:            "mpesa-receive",
			SenderAddresses: []string{"MPESA"},
			Priority:        90,
			Enabled:         true,
			Patterns: []Pattern{
				{
					Regex:     `You have received Ksh([\d,]+\.\d{2}) from ([A-Za-z ]+) ([0-9]+)`,
					Direction: model.DirectionCredit,
					Groups:    CaptureGroups{Amount: 1, Counterparty: 2, Reference: 3},
				},
			},
		},
		{
			Name:            "generic-bank-debit",
			SenderAddresses: nil,
			Priority:        10,
			Enabled:         true,
			Patterns: []Pattern{
				{
					Regex:     `debited with ([\d,]+\.\d{2}).*?ref(?:erence)?[:\s]+([A-Z0-9]+)`,
					Direction: model.DirectionDebit,
					Groups:    CaptureGroups{Amount: 1, Reference: 2},
				},
				{
					Regex:     `credited with ([\d,]+\.\d{2}).*?ref(?:erence)?[:\s]+([A-Z0-9]+)`,
					Direction: model.DirectionCredit,
					Groups:    CaptureGroups{Amount: 1, Reference: 2},
				},
			},
		},
	}
}
