package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"
)

type countingResolver struct {
	names map[int64]string
	calls int
}

func (r *countingResolver) CategoryName(_ context.Context, id int64) (string, error) {
	r.calls++
	name, ok := r.names[id]
	if !ok {
		return "", core.ErrNotFound
	}
	return name, nil
}

func TestCachedResolverHit(t *testing.T) {
	inner := &countingResolver{names: map[int64]string{1: "Food"}}
	r := NewCachedResolver(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		name, err := r.CategoryName(context.Background(), 1)
		if err != nil || name != "Food" {
			t.Fatalf("got (%q, %v)", name, err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner resolver called %d times, want 1", inner.calls)
	}
}

func TestCachedResolverNegativeCaching(t *testing.T) {
	inner := &countingResolver{names: map[int64]string{}}
	r := NewCachedResolver(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := r.CategoryName(context.Background(), 42)
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("got %v", err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("inner resolver called %d times, want 1", inner.calls)
	}
}

func TestCachedResolverInvalidate(t *testing.T) {
	inner := &countingResolver{names: map[int64]string{1: "Food"}}
	r := NewCachedResolver(inner, 16, time.Minute)

	if _, err := r.CategoryName(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	inner.names[1] = "Groceries"
	r.Invalidate(1)

	name, err := r.CategoryName(context.Background(), 1)
	if err != nil || name != "Groceries" {
		t.Fatalf("got (%q, %v), want fresh value after invalidate", name, err)
	}
}
