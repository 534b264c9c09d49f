// Package access holds the authorization predicates for offers and escrow
// transactions. Predicates are pure: they look at records already loaded by
// the caller and never touch storage, so they can be reused by services and
// handlers alike.
package access

import (
	"github.com/google/uuid"

	"github.com/needmarket/backend/internal/models"
)

// CanProviderCreateOffer reports whether userID may bid on the need. A buyer
// may not offer on their own need, and closed needs take no offers.
func CanProviderCreateOffer(need *models.Need, userID uuid.UUID) bool {
	if need == nil {
		return false
	}
	return need.Status == models.NeedStatusActive && need.BuyerUserID != userID
}

// CanBuyerManageOffer reports whether userID may accept or reject the offer:
// only the owner of the need the offer references.
func CanBuyerManageOffer(need *models.Need, userID uuid.UUID) bool {
	return need != nil && need.BuyerUserID == userID
}

// CanProviderManageOffer reports whether userID may withdraw the offer.
func CanProviderManageOffer(offer *models.Offer, userID uuid.UUID) bool {
	return offer != nil && offer.ProviderUserID == userID
}

// CanUserAccessTransaction reports whether userID is a party to the
// transaction, as buyer or as provider.
func CanUserAccessTransaction(txn *models.Transaction, userID uuid.UUID) bool {
	if txn == nil {
		return false
	}
	return txn.BuyerUserID == userID || txn.ProviderUserID == userID
}

// CanBuyerSettleTransaction reports whether userID may release or refund the
// escrowed funds. Settlement is buyer-initiated.
func CanBuyerSettleTransaction(txn *models.Transaction, userID uuid.UUID) bool {
	return txn != nil && txn.BuyerUserID == userID
}
