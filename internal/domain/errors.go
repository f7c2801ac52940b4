package domain

import "errors"

var (
	// ErrSessionNotFound is returned when an exam session has not been started or has expired.
	ErrSessionNotFound = errors.New("exam session not found")
	// ErrQuestionNotFound indicates a question ID does not resolve in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidVariant is returned for question type names outside choice/fill/code.
	ErrInvalidVariant = errors.New("invalid question type")
	// ErrNoIdentity means the caller could not be tied to a user.
	ErrNoIdentity = errors.New("no user identity")
	// ErrInvalidAnswers indicates an answer map that could not be decoded.
	ErrInvalidAnswers = errors.New("invalid answers")
	// ErrNotCodeQuestion is returned when a code run targets a non-code question.
	ErrNotCodeQuestion = errors.New("question is not a code question")
)
