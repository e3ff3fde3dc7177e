package testutil

import (
	"context"
	"sync"
)

// StubCompleter returns a canned response or error and counts calls.
// Safe for concurrent use.
type StubCompleter struct {
	mu       sync.Mutex
	response string
	err      error
	calls    int
	prompts  []string
}

// NewStubCompleter creates a StubCompleter that answers every prompt with response.
func NewStubCompleter(response string) *StubCompleter {
	return &StubCompleter{response: response}
}

// NewFailingCompleter creates a StubCompleter that fails every call with err.
func NewFailingCompleter(err error) *StubCompleter {
	return &StubCompleter{err: err}
}

// InsightJSON is a well-formed completion response with distinct entries.
const InsightJSON = `{"insights":["You walked more than usual","Sleep was steady","Meals were balanced"],` +
	`"recommendations":["Keep the walking streak","Go to bed at the same time","Drink more water"]}`

func (c *StubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.prompts = append(c.prompts, prompt)
	return c.response, c.err
}

// Respond changes the canned response and clears any error.
func (c *StubCompleter) Respond(response string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.response, c.err = response, nil
}

// Calls returns the number of Complete calls so far.
func (c *StubCompleter) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// LastPrompt returns the most recent prompt, or "" if none.
func (c *StubCompleter) LastPrompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.prompts) == 0 {
		return ""
	}
	return c.prompts[len(c.prompts)-1]
}
