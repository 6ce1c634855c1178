package user

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "dealer", want: RoleDealer},
		{in: " Retailer ", want: RoleRetailer},
		{in: "CUSTOMER", want: RoleCustomer},
		{in: "admin", want: RoleAdmin},
		{in: "superuser", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				var roleErr *InvalidRoleError
				require.ErrorAs(t, err, &roleErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRole_Permissions(t *testing.T) {
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleDealer.IsAdmin())
	assert.False(t, Role("root").IsAdmin())

	assert.False(t, RoleAdmin.SelfRegistrable())
	assert.True(t, RoleCustomer.SelfRegistrable())
	assert.False(t, Role("").SelfRegistrable())

	assert.Equal(t, "Retailer", RoleRetailer.Title())
}

func TestValidateTaxID(t *testing.T) {
	valid := []string{"27ABCDE1234F1Z5", "22aaaaa0000a1z5", "09PQRST6789KAZA"}
	for _, id := range valid {
		assert.NoError(t, ValidateTaxID(id), id)
	}

	invalid := []string{
		"",
		"27ABCDE1234F1Z",   // too short
		"27ABCDE1234F0Z5",  // entity number cannot be 0
		"27ABCDE1234F1X5",  // literal Z missing
		"2AABCDE1234F1Z5",  // state code not numeric
		"27ABCD11234F1Z5",  // PAN letters
		"27ABCDE1234F1Z5X", // too long
	}
	for _, id := range invalid {
		var taxErr *InvalidTaxIDError
		assert.ErrorAs(t, ValidateTaxID(id), &taxErr, id)
	}
}

func TestUser_SetTaxRegistration(t *testing.T) {
	t.Run("registered with valid id", func(t *testing.T) {
		var u User
		require.NoError(t, u.SetTaxRegistration(true, " 27abcde1234f1z5 "))
		assert.True(t, u.TaxRegistered)
		assert.Equal(t, "27ABCDE1234F1Z5", u.TaxID)
	})

	t.Run("registered without id", func(t *testing.T) {
		var u User
		var taxErr *InvalidTaxIDError
		require.ErrorAs(t, u.SetTaxRegistration(true, ""), &taxErr)
		assert.False(t, u.TaxRegistered)
	})

	t.Run("registered with malformed id leaves user untouched", func(t *testing.T) {
		u := User{TaxRegistered: true, TaxID: "27ABCDE1234F1Z5"}
		require.Error(t, u.SetTaxRegistration(true, "BOGUS"))
		assert.Equal(t, "27ABCDE1234F1Z5", u.TaxID)
	})

	t.Run("unregistered clears id", func(t *testing.T) {
		u := User{TaxRegistered: true, TaxID: "27ABCDE1234F1Z5"}
		require.NoError(t, u.SetTaxRegistration(false, ""))
		assert.False(t, u.TaxRegistered)
		assert.Empty(t, u.TaxID)
	})

	t.Run("unregistered with id is rejected", func(t *testing.T) {
		var u User
		var taxErr *InvalidTaxIDError
		require.ErrorAs(t, u.SetTaxRegistration(false, "27ABCDE1234F1Z5"), &taxErr)
	})
}
