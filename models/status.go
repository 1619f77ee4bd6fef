package models

import "fmt"

type RequestStatus string

const (
	StatusCreated RequestStatus = "created"
	StatusPending RequestStatus = "pending"
	StatusAwarded RequestStatus = "awarded"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case StatusCreated, StatusPending, StatusAwarded:
		return true
	default:
		return false
	}
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	status := RequestStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown request status %q", s)
	}
	return status, nil
}

// CanTransition описывает допустимые переходы заявки.
// awarded - терминальное состояние.
func CanTransition(from, to RequestStatus) bool {
	switch from {
	case StatusCreated:
		return to == StatusPending
	case StatusPending:
		return to == StatusPending || to == StatusAwarded
	default:
		return false
	}
}

// AllStatuses в порядке жизненного цикла
func AllStatuses() []RequestStatus {
	return []RequestStatus{StatusCreated, StatusPending, StatusAwarded}
}

type ItemKind string

const (
	KindMetal   ItemKind = "metal"
	KindGeneric ItemKind = "generic"
)

func (k ItemKind) Valid() bool {
	return k == KindMetal || k == KindGeneric
}
