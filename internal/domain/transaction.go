package domain

import "github.com/shopspring/decimal"

type TransactionStatus string

const (
	TransactionOpen      TransactionStatus = "open"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionCompleted TransactionStatus = "completed"
)

type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

type Transaction struct {
	ID         string            `db:"id" json:"transaction_id"`
	ListingID  string            `db:"listing_id" json:"listing_id"`
	BuyerID    string            `db:"buyer_id" json:"buyer_id"`
	SellerID   string            `db:"seller_id" json:"seller_id"`
	FinalPrice decimal.Decimal   `db:"final_price" json:"final_price"`
	Status     TransactionStatus `db:"status" json:"status"`
	CreatedAt  string            `db:"created_at" json:"created_at,omitempty"`
}

// PartyOf reports which side of the transaction userID is on.
func (t Transaction) PartyOf(userID string) (Party, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == t.BuyerID:
		return PartyBuyer, true
	case userID == t.SellerID:
		return PartySeller, true
	}
	return "", false
}

type ContractStatus string

const (
	ContractUnsigned        ContractStatus = "unsigned"
	ContractPartiallySigned ContractStatus = "partially_signed"
	ContractReady           ContractStatus = "ready"
)

type Contract struct {
	TransactionID  string `db:"transaction_id" json:"transaction_id"`
	Term           string `db:"term" json:"term"`
	SignedByBuyer  bool   `db:"signed_by_buyer" json:"signed_by_buyer"`
	SignedBySeller bool   `db:"signed_by_seller" json:"signed_by_seller"`
}

func (c Contract) Status() ContractStatus {
	switch {
	case c.SignedByBuyer && c.SignedBySeller:
		return ContractReady
	case c.SignedByBuyer || c.SignedBySeller:
		return ContractPartiallySigned
	}
	return ContractUnsigned
}

func (c Contract) SignedBy(p Party) bool {
	if p == PartyBuyer {
		return c.SignedByBuyer
	}
	return c.SignedBySeller
}

type PaymentMethod string

const (
	MethodEWallet PaymentMethod = "e-wallet"
	MethodBank    PaymentMethod = "bank"
	MethodCash    PaymentMethod = "cash"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodEWallet || m == MethodBank || m == MethodCash
}

// Redirect reports whether the method settles through an external payment page.
func (m PaymentMethod) Redirect() bool { return m == MethodEWallet || m == MethodBank }

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) Terminal() bool { return s == PaymentCompleted || s == PaymentFailed }

type Payment struct {
	ID            string          `db:"id" json:"payment_id"`
	TransactionID string          `db:"transaction_id" json:"transaction_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	Method        PaymentMethod   `db:"method" json:"payment_method"`
	Status        PaymentStatus   `db:"status" json:"status"`
	Attempt       int             `db:"attempt" json:"attempt"`
	CreatedAt     string          `db:"created_at" json:"created_at,omitempty"`
}
