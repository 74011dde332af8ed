package generation

import (
	"context"
	"sync"
	"time"
)

// Fake answers every submission with a fixed response or error.
type Fake struct {
	Response *Response
	Err      error
	Delay    time.Duration

	mu      sync.Mutex
	uploads []Upload
	metas   []Context
}

func NewFake(resp *Response, err error) *Fake {
	return &Fake{Response: resp, Err: err}
}

func (f *Fake) Submit(ctx context.Context, up Upload, meta Context) (*Response, error) {
	f.mu.Lock()
	f.uploads = append(f.uploads, up)
	f.metas = append(f.metas, meta)
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, &SubmissionError{Err: ctx.Err()}
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Response == nil {
		return &Response{StatusCode: 200}, nil
	}
	r := *f.Response
	return &r, nil
}

func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *Fake) LastUpload() (Upload, Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) == 0 {
		return Upload{}, Context{}
	}
	return f.uploads[len(f.uploads)-1], f.metas[len(f.metas)-1]
}
