package fields

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r, err := DefaultRegistry(Options{})
	require.NoError(t, err)
	assert.Equal(t, "rental", r.DefaultType())
	assert.Equal(t, []string{"rental", "sale"}, r.Types())

	s, ok := r.Lookup(" Rental ")
	require.True(t, ok)
	var names []string
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{
		"Rent Amount", "Start Date", "End Date",
		"Tenant Name", "Landlord Name", "Property Location",
	}, names)

	s, ok = r.Lookup("affidavit")
	assert.False(t, ok)
	assert.Equal(t, "rental", s.Type)
}

func TestSaleSchema(t *testing.T) {
	r, err := DefaultRegistry(Options{})
	require.NoError(t, err)
	s, ok := r.Lookup("sale")
	require.True(t, ok)

	text := "AGREEMENT FOR SALE dated 10/02/2024 between Suresh Iyer and Meena Rao.\n" +
		"Sale consideration of Rs. 50,00,000 paid in full.\n" +
		"Flat 9, Palm Grove,\nBandra, Mumbai 400050"
	want := map[string]string{
		"Sale Amount":       "5000000",
		"Agreement Date":    "10/02/2024",
		"Buyer Name":        "Meena Rao",
		"Seller Name":       "Suresh Iyer",
		"Property Location": "Flat 9, Palm Grove, Bandra, Mumbai 400050",
	}
	for _, f := range s.Fields {
		got, ok := f.Extract(text, "")
		require.True(t, ok, f.Name)
		assert.Equal(t, want[f.Name], got, f.Name)
	}
}

func TestLoadRegistryRejectsBadSchemas(t *testing.T) {
	tests := map[string]string{
		"empty":         `schemas: []`,
		"unknown kind":  "schemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: colour}\n",
		"bad pattern":   "schemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: amount, label: '(rent'}\n",
		"missing role":  "schemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: party-name}\n",
		"no input key":  "schemas:\n  - type: x\n    fields:\n      - {name: A, kind: location}\n",
		"bad default":   "default: y\nschemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: location}\n",
		"duplicate":     "schemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: location}\n  - type: X\n    fields:\n      - {name: A, inputKey: a, kind: location}\n",
		"between range": "schemas:\n  - type: x\n    fields:\n      - {name: A, inputKey: a, kind: party-name, role: buyer, betweenGroup: 3}\n",
		"not yaml":      "schemas: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadRegistry([]byte(doc), Options{})
			assert.Error(t, err)
		})
	}
}

func TestLoadRegistryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas.yaml")
	doc := "schemas:\n  - type: deposit\n    fields:\n      - {name: Deposit, inputKey: deposit, kind: amount, label: 'deposit'}\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	r, err := LoadRegistryFile(path, Options{CandidateThreshold: 0.6})
	require.NoError(t, err)
	assert.Equal(t, "deposit", r.DefaultType())

	s, _ := r.Lookup("anything")
	got, ok := s.Fields[0].Extract("Security deposit: Rs 45,000", "")
	require.True(t, ok)
	assert.Equal(t, "45000", got)

	_, err = LoadRegistryFile(filepath.Join(t.TempDir(), "missing.yaml"), Options{})
	assert.Error(t, err)
}
