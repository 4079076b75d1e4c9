package money_test

import (
	"testing"

	"github.com/Hamoudy10/Hospital-Management-System-sub000/internal/money"
	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"600", 60000, false},
		{"600.00", 60000, false},
		{"600.5", 60050, false},
		{" 1.25 ", 125, false},
		{"0", 0, false},
		{"600.005", 0, true},
		{"", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := money.ParseAmount(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestFromFloat(t *testing.T) {
	got, err := money.FromFloat(500)
	require.NoError(t, err)
	assert.Equal(t, int64(50000), got)

	got, err = money.FromFloat(10.5)
	require.NoError(t, err)
	assert.Equal(t, int64(1050), got)

	_, err = money.FromFloat(-1)
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "600.00", money.Format(60000))
	assert.Equal(t, "0.05", money.Format(5))
	assert.Equal(t, "400", money.MajorUnits(40000))
	assert.Equal(t, "400.50", money.MajorUnits(40050))
}

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"254712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"0712345678", "254712345678", false},
		{"712345678", "254712345678", false},
		{"0112345678", "254112345678", false},
		{"12345", "", true},
		{"07123456xx", "", true},
	}
	for _, tc := range cases {
		got, err := money.NormalizePhone(tc.in)
		if tc.wantErr {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestReferenceNumbers(t *testing.T) {
	assert.Equal(t, "INV-0007", money.NormalizeReference(" inv-0007 "))
	assert.Equal(t, "INV-000042", money.InvoiceNumber(42))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	id := node.Generate()
	assert.Equal(t, "PAY-"+id.String(), money.PaymentNumber(id))
}
