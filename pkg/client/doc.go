/*
Package client issues the outbound actions the DSLC and AAS decide on
against the data and inference nodes that actually execute them:
rollover, delete-index, update-settings, and force-merge for the DSLC;
update-trained-model-deployment and get-deployment-stats for the AAS.

ActionClient is a single generic dispatch method rather than one Go
method per action, mirroring the Warren API client's RPC-per-operation
shape but collapsed to one envelope since every action here carries the
same request/response/error contract. Wire serialization is out of
scope for clustercore's domain logic, so GRPCActionClient encodes
requests into a structpb.Struct, a real protobuf well-known type,
not a generated one, rather than hand-authoring .pb.go stubs.
*/
package client
