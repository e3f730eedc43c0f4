package eventstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseEventID tests decoding of canonical and legacy event ids
func TestParseEventID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    EventID
		wantErr bool
	}{
		{
			name: "canonical id",
			raw:  "acme/billing/invoices-1",
			want: EventID{Tenant: "acme", Namespace: "billing", Topic: "invoices", Sequence: 1},
		},
		{
			name: "topic with dashes",
			raw:  "acme/billing/invoice-events-42",
			want: EventID{Tenant: "acme", Namespace: "billing", Topic: "invoice-events", Sequence: 42},
		},
		{
			name: "legacy single segment",
			raw:  "invoices-7",
			want: EventID{Topic: "invoices", Sequence: 7},
		},
		{
			name: "reserved control plane id",
			raw:  "$system/$management/api-keys-3",
			want: EventID{Tenant: "$system", Namespace: "$management", Topic: "api-keys", Sequence: 3},
		},
		{
			name:    "two segments",
			raw:     "acme/invoices-1",
			wantErr: true,
		},
		{
			name:    "missing sequence",
			raw:     "acme/billing/invoices",
			wantErr: true,
		},
		{
			name:    "zero sequence",
			raw:     "acme/billing/invoices-0",
			wantErr: true,
		},
		{
			name:    "negative sequence",
			raw:     "acme/billing/invoices--5",
			wantErr: true,
		},
		{
			name:    "empty tenant",
			raw:     "/billing/invoices-1",
			wantErr: true,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEventID(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestEventIDRoundTrip tests that decoding then re-encoding yields the input
func TestEventIDRoundTrip(t *testing.T) {
	ids := []string{
		"acme/billing/invoices-1",
		"acme/billing/invoices-999",
		"acme/billing/invoices-1000",
		"t/n/topic-with-many-dashes-123456",
		"$system/$management/permissions-8",
	}
	for _, raw := range ids {
		id, err := ParseEventID(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, id.String())
	}
}

// TestWithScope tests legacy id scoping
func TestWithScope(t *testing.T) {
	legacy, err := ParseEventID("invoices-5")
	require.NoError(t, err)

	scoped := legacy.WithScope("acme", "billing")
	assert.Equal(t, "acme/billing/invoices-5", scoped.String())

	// Already scoped ids keep their own tenant and namespace.
	full, err := ParseEventID("other/ns/invoices-5")
	require.NoError(t, err)
	assert.Equal(t, "other/ns/invoices-5", full.WithScope("acme", "billing").String())
}
