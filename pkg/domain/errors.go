package domain

import "errors"

var (
	ErrWorkflowNotFound   = errors.New("workflow not found")
	ErrAgentNotFound      = errors.New("agent not found")
	ErrRunNotFound        = errors.New("run not found")
	ErrMalformedWorkflow  = errors.New("malformed workflow")
	ErrCycleDetected      = errors.New("cycle detected in workflow")
	ErrStepFailed         = errors.New("step execution failed")
	ErrUnsupportedStep    = errors.New("unsupported step type")
	ErrInvalidConfig      = errors.New("invalid step config")
	ErrInvalidInput       = errors.New("invalid input")
	ErrGenerationFailed   = errors.New("text generation failed")
	ErrEmbeddingFailed    = errors.New("embedding generation failed")
	ErrStoreFailed        = errors.New("store operation failed")
	ErrConfigurationError = errors.New("configuration error")
)
