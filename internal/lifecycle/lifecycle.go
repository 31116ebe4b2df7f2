// Package lifecycle defines which order status changes are allowed and who may make them.
package lifecycle

import (
	"fmt"
	"github.com/rookgm/tableorder/internal/models"
	"strings"
)

// Actor is the kind of caller requesting a transition
type Actor string

const (
	ActorAdmin    Actor = "admin"
	ActorCustomer Actor = "customer"
	ActorSystem   Actor = "system"
)

type edge struct {
	from, to models.OrderStatus
}

// transitions maps every legal edge to the actors allowed to take it
var transitions = map[edge][]Actor{
	{models.OrderStatusPending, models.OrderStatusPreparing}:   {ActorAdmin},
	{models.OrderStatusPending, models.OrderStatusRejected}:    {ActorAdmin},
	{models.OrderStatusPreparing, models.OrderStatusReady}:     {ActorAdmin},
	{models.OrderStatusPreparing, models.OrderStatusCompleted}: {ActorAdmin},
	{models.OrderStatusReady, models.OrderStatusCompleted}:     {ActorAdmin, ActorSystem},
}

// aliases accepted on input, never stored
var aliases = map[string]models.OrderStatus{
	"accepted": models.OrderStatusPreparing,
}

// Normalize maps raw input to a canonical status
func Normalize(raw string) (models.OrderStatus, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if st, ok := aliases[s]; ok {
		return st, nil
	}
	st := models.OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q: %w", raw, models.ErrValidation)
	}
	return st, nil
}

// Check returns nil when actor may move an order from one status to another
func Check(from, to models.OrderStatus, actor Actor) error {
	if from.Terminal() {
		return &models.InvalidTransitionError{From: from, To: to, Reason: "order is closed"}
	}
	actors, ok := transitions[edge{from, to}]
	if !ok {
		return &models.InvalidTransitionError{From: from, To: to}
	}
	for _, a := range actors {
		if a == actor {
			return nil
		}
	}
	return &models.InvalidTransitionError{From: from, To: to, Reason: fmt.Sprintf("not allowed for %s", actor)}
}

// Next lists the statuses actor may move an order to from the given status
func Next(from models.OrderStatus, actor Actor) []models.OrderStatus {
	var next []models.OrderStatus
	for _, to := range models.OrderStatuses {
		if Check(from, to, actor) == nil {
			next = append(next, to)
		}
	}
	return next
}
