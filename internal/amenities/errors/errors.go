package errors

import "errors"

var (
	ErrNotFound = errors.New("amenity not found")

	ErrInvalidID = errors.New("invalid amenity ID format")

	ErrDuplicateName = errors.New("amenity with this name already exists")

	ErrInvalidSlot = errors.New("slot does not exist for this amenity and date")
)
