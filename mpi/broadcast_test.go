package mpi

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/sync/errgroup"
)

func TestBroadcastBytesDistributesRootData(t *testing.T) {
	ranks := NewInProcessGroup(3)
	results := make([][]byte, len(ranks))

	g, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g.Go(func() error {
			var data []byte
			if i == 0 {
				data = []byte("root payload")
			}
			res, err := comm.BroadcastBytes(ctx, 0, data)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("BroadcastBytes: %v", err)
	}
	for rank, got := range results {
		if !bytes.Equal(got, []byte("root payload")) {
			t.Errorf("rank %d received %q, want the root payload", rank, got)
		}
	}
}

func TestReadOnRankZeroReadsOnceAndBroadcasts(t *testing.T) {
	ranks := NewInProcessGroup(4)
	results := make([][]byte, len(ranks))
	reads := 0

	g, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g.Go(func() error {
			res, err := ReadOnRankZero(ctx, comm, func() ([]byte, error) {
				reads++ // only rank 0 runs this, no synchronization needed
				return []byte(`{"openPMD": "2.0.0"}`), nil
			})
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("ReadOnRankZero: %v", err)
	}
	if reads != 1 {
		t.Fatalf("read callback ran %d times, want exactly 1 (on rank 0)", reads)
	}
	for rank, got := range results {
		if !bytes.Equal(got, []byte(`{"openPMD": "2.0.0"}`)) {
			t.Errorf("rank %d received %q", rank, got)
		}
	}
}

func TestReadOnRankZeroPropagatesReadFailure(t *testing.T) {
	ranks := NewInProcessGroup(2)
	errs := make([]error, len(ranks))

	g, ctx := errgroup.WithContext(context.Background())
	for i, comm := range ranks {
		i, comm := i, comm
		g.Go(func() error {
			_, err := ReadOnRankZero(ctx, comm, func() ([]byte, error) {
				return nil, errors.New("no such file")
			})
			errs[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	for rank, err := range errs {
		if err == nil || !strings.Contains(err.Error(), "no such file") {
			t.Errorf("rank %d: want the rank-zero read failure, got %v", rank, err)
		}
	}
}
