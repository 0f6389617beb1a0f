package domain

import "errors"

var (
	// ErrScreenNotFound indicates the requested screen is not registered.
	ErrScreenNotFound = errors.New("screen not found")

	// ErrScreenNotMounted indicates an operation that requires a mounted screen.
	ErrScreenNotMounted = errors.New("screen not mounted")

	// ErrInvalidScreen indicates a screen definition failed validation.
	ErrInvalidScreen = errors.New("invalid screen")

	// ErrInvalidTopic indicates an unknown realtime topic.
	ErrInvalidTopic = errors.New("invalid topic")

	// ErrInvalidVisibility indicates an unknown page visibility state.
	ErrInvalidVisibility = errors.New("invalid visibility state")

	// ErrFetchFailed indicates a REST call made by a screen refetch failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrInvalidConfig indicates the screen configuration could not be loaded.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrSourceClosed indicates a realtime source ended its stream.
	ErrSourceClosed = errors.New("realtime source closed")
)
