package delivery

import (
	"context"
	"sync"
)

// Fake records every request and answers with Err or an accepted receipt.
type Fake struct {
	Err error

	mu       sync.Mutex
	requests []Request
}

func (f *Fake) Send(ctx context.Context, req Request) (*Receipt, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &TransmissionError{Message: DefaultFailureMessage, Err: err}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &Receipt{StatusCode: 200, Message: "sent"}, nil
}

func (f *Fake) Requests() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Request(nil), f.requests...)
}
