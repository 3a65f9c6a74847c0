package domain

import "testing"

func TestContractStatusDerivation(t *testing.T) {
	cases := []struct {
		c    Contract
		want ContractStatus
	}{
		{Contract{}, ContractUnsigned},
		{Contract{SignedByBuyer: true}, ContractPartiallySigned},
		{Contract{SignedBySeller: true}, ContractPartiallySigned},
		{Contract{SignedByBuyer: true, SignedBySeller: true}, ContractReady},
	}
	for _, tc := range cases {
		if got := tc.c.Status(); got != tc.want {
			t.Fatalf("%+v: want %s, got %s", tc.c, tc.want, got)
		}
	}
}

func TestPartyOf(t *testing.T) {
	tx := Transaction{BuyerID: "b", SellerID: "s"}
	if p, ok := tx.PartyOf("b"); !ok || p != PartyBuyer {
		t.Fatalf("buyer not recognised: %v %v", p, ok)
	}
	if p, ok := tx.PartyOf("s"); !ok || p != PartySeller {
		t.Fatalf("seller not recognised: %v %v", p, ok)
	}
	if _, ok := tx.PartyOf("admin"); ok {
		t.Fatal("outsider must not be a party")
	}
	if _, ok := tx.PartyOf(""); ok {
		t.Fatal("empty id must not match")
	}
}
