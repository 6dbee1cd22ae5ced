package agent

import "context"

// EchoBackend answers every request with its prompt. It needs no credentials
// and is used for offline runs and tests.
type EchoBackend struct{}

// Name returns the backend identifier.
func (EchoBackend) Name() string { return ProviderEcho }

// Complete returns the prompt unchanged.
func (EchoBackend) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return req.Prompt, nil
}
