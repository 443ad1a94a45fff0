package data

import (
	"errors"
	"sync"
	"testing"
)

func TestErrors(t *testing.T) {
	var errs Errors
	if err := errs.Errors(); err != nil {
		t.Fatalf("Expected nil without errors, got %v", err)
	}

	errs.Add(nil)
	if err := errs.Errors(); err != nil {
		t.Fatalf("Expected nil errors to be skipped, got %v", err)
	}

	first := errors.New("tracker stuck")
	second := errors.New("connection refused")

	var wg sync.WaitGroup
	for _, err := range []error{first, second} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs.Add(err)
		}()
	}
	wg.Wait()

	err := errs.Errors()
	if !errors.Is(err, first) || !errors.Is(err, second) {
		t.Errorf("Expected joined error to match both causes, got %v", err)
	}
}
