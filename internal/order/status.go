package order

import (
	"errors"
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusOrdered    Status = "ordered"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var ErrInvalidTransition = errors.New("invalid status transition")

var transitions = map[Status][]Status{
	StatusPending:    {StatusOrdered, StatusCancelled},
	StatusOrdered:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped},
	StatusShipped:    {StatusDelivered},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusOrdered, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return len(transitions[s]) == 0 }

func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus accepts any casing ("Ordered", "SHIPPED").
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", v)
	}
	return s, nil
}

// CheckTransition returns ErrInvalidTransition wrapped with both ends.
func CheckTransition(from, to Status) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
