package domain

import "errors"

var (
	// ErrRoomNotFound is returned when a room ID is unknown to the store.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when joining a room at capacity.
	ErrRoomFull = errors.New("room is full")
	// ErrInvalidPassword is returned when a private room's password mismatches.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrInvalidSettings indicates room creation settings outside the allowed bounds.
	ErrInvalidSettings = errors.New("invalid room settings")
	// ErrQuestionsNotFound indicates the question source had nothing for the selection.
	ErrQuestionsNotFound = errors.New("no questions found for selection")
)
