package mpi

import (
	"context"

	"openpmd/chunkassignment"
)

// ByMethodCollective resolves every rank's locality tag via method and
// exchanges them so that every rank ends up with a complete RankMeta,
// keyed by rank number. Ported from openPMD-api's
// host_info::byMethodCollective.
func ByMethodCollective(ctx context.Context, comm Communicator, method chunkassignment.HostInfoMethod) (chunkassignment.RankMeta, error) {
	mine, err := chunkassignment.ByMethod(method)
	if err != nil {
		return nil, err
	}
	all, err := comm.AllGatherStrings(ctx, mine)
	if err != nil {
		return nil, err
	}
	res := make(chunkassignment.RankMeta, len(all))
	for i, hostname := range all {
		res[uint(i)] = hostname
	}
	return res, nil
}
