// Package audit models the sale engine's observable side effects as
// structured event records. Events are appended during a call and fanned out
// to sinks (memory store, Postgres outbox, Kafka); they are not part of the
// ledger's own invariants.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventCategory classifies events by their primary purpose so sinks can apply
// different retention and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with monetary or regulatory
	// significance: purchases, refunds, presale distributions, finalization.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers configuration changes and routine activity.
	CategoryOperations EventCategory = "operations"
)

// Action names for sale events.
type Action string

const (
	ActionTokenPurchased     Action = "token_purchased"
	ActionBuyerRefunded      Action = "buyer_refunded"
	ActionPresaleDistributed Action = "presale_distributed"
	ActionFinalized          Action = "finalized"
	ActionPriceChanged       Action = "price_changed"
	ActionTeamWalletChanged  Action = "team_wallet_changed"
)

var actionCategories = map[Action]EventCategory{
	ActionTokenPurchased:     CategoryCompliance,
	ActionBuyerRefunded:      CategoryCompliance,
	ActionPresaleDistributed: CategoryCompliance,
	ActionFinalized:          CategoryCompliance,
	ActionPriceChanged:       CategoryOperations,
	ActionTeamWalletChanged:  CategoryOperations,
}

// Category returns the category for this action. Unknown actions default to
// CategoryOperations.
func (a Action) Category() EventCategory {
	if cat, ok := actionCategories[a]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from the sale engine to capture a state change. Keep it
// transport-agnostic so stores and sinks can fan out. Monetary fields are
// decimal strings so no sink has to understand big integers.
type Event struct {
	ID        uuid.UUID
	Action    Action
	Timestamp time.Time

	// Sender is the paying address; Buyer the beneficiary. For admin events
	// both are empty and ActorID carries the operator identity.
	Sender string
	Buyer  string

	// Value is the wei amount the event concerns (accepted value for a
	// purchase, refunded value for a refund, new price for a price change).
	Value string

	// Tokens is the token quantum amount minted, when applicable.
	Tokens string

	// ActorID is the authenticated operator behind owner-only actions.
	ActorID string

	// RequestID is the correlation id from the HTTP request context.
	RequestID string
}

// Category derives the event's category from its action.
func (e Event) Category() EventCategory {
	return e.Action.Category()
}
