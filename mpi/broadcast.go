package mpi

import (
	"context"
	"errors"
)

// ReadOnRankZero runs read on rank 0 only and broadcasts the result to
// every rank, so that a Series opened on N ranks hits the backend once
// for shared metadata instead of N times (§5's rank-zero read +
// broadcast). A read failure on rank 0 is propagated to every rank, so
// the group fails collectively rather than deadlocking on a missing
// contribution.
func ReadOnRankZero(ctx context.Context, comm Communicator, read func() ([]byte, error)) ([]byte, error) {
	var payload []byte
	if comm.Rank() == 0 {
		data, err := read()
		if err != nil {
			payload = append([]byte{1}, []byte(err.Error())...)
		} else {
			payload = append([]byte{0}, data...)
		}
	}
	out, err := comm.BroadcastBytes(ctx, 0, payload)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, errors.New("mpi: empty broadcast from rank 0")
	}
	if out[0] != 0 {
		return nil, errors.New("mpi: rank-zero read failed: " + string(out[1:]))
	}
	return out[1:], nil
}
