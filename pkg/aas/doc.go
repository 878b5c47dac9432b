/*
Package aas implements the Adaptive Allocation Scaler: a periodic
control loop that observes per-deployment inference load across nodes
and issues allocation-count updates for deployments that opted into
adaptive allocations, subject to per-deployment min/max bounds.

Unlike the DSLC's event-driven Run, AAS is a single recurring task on
its own ticker, started and stopped as deployments with adaptive
allocations come and go:

	clusterstate.Service.Subscribe() ──► clusterChanged() ──► reconcileScalers()
	                                                               │
	                                              create/remove PerDeploymentScaler
	                                              per assignment, start/stop ticking
	                                                               │
	       ticker fires ──► tick() ──► GetDeploymentStats ──► handleStats()
	                                                               │
	                                      recent = current - last, per (deployment, node)
	                                      aggregate per deployment via Stats.Add
	                                      scaler.Process + scaler.Scale
	                                                               │
	                                      changed? ──► UpdateTrainedModelDeployment

reconcileScalers and handleStats share the AAS mutex with the ticker
goroutine and the cluster-change listener goroutine, since cluster
events may interleave with an in-flight tick's RPC completion. A stats
response for a deployment whose scaler has since been removed is
silently dropped rather than acted on.
*/
package aas
