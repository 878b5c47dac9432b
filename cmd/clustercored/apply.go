package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fluxstream/clustercore/pkg/storage"
	"github.com/fluxstream/clustercore/pkg/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// applyCmd seeds a node's local BoltDB store directly from a YAML
// manifest. clustercore drops the teacher's admin RPC surface (see
// DESIGN.md's pkg/api entry), so there is no running server to apply
// against; a manifest is instead applied straight to the data
// directory a clustercored process reads on its next start or
// Raft-restore, without an RPC round trip. Every resource in the
// manifest is upserted by kind, whether or not it differs from the
// stored copy.
var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Seed a node's local storage from a YAML manifest",
	Long: `apply reads a YAML manifest of DataStream and
DeploymentAssignment resources and upserts them into the BoltDB store
at --data-dir. Run it against a stopped node before "cluster init", or
against a follower's data directory before it joins, since clustercored
itself never applies a manifest while serving.

Examples:
  clustercored apply -f streams.yaml --data-dir ./data`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	applyCmd.Flags().String("data-dir", "./data", "Data directory containing the node's BoltDB store")
	_ = applyCmd.MarkFlagRequired("file")
}

// manifest is the YAML wire shape applied by this command. Unlike the
// teacher's single-object-per-file WarrenResource, a clustercore
// manifest batches every resource kind in one document since a data
// stream and its deployment assignments are typically rolled out
// together.
type manifest struct {
	DataStreams          []dataStreamResource          `yaml:"dataStreams"`
	DeploymentAssignments []deploymentAssignmentResource `yaml:"deploymentAssignments"`
}

type dataStreamResource struct {
	Name          string  `yaml:"name"`
	DataRetention string  `yaml:"dataRetention,omitempty"`
	MaxAge        string  `yaml:"maxAge,omitempty"`
	MaxDocs       *int64  `yaml:"maxDocs,omitempty"`
}

type deploymentAssignmentResource struct {
	DeploymentID           string `yaml:"deploymentId"`
	AdaptiveAllocations    bool   `yaml:"adaptiveAllocations"`
	MinAllocations         *int   `yaml:"minAllocations,omitempty"`
	MaxAllocations         *int   `yaml:"maxAllocations,omitempty"`
	TotalTargetAllocations int    `yaml:"totalTargetAllocations"`
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")
	dataDir, _ := cmd.Flags().GetString("data-dir")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse manifest: %w", err)
	}

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	for _, r := range m.DataStreams {
		if err := applyDataStream(store, r); err != nil {
			return fmt.Errorf("apply data stream %q: %w", r.Name, err)
		}
	}
	for _, r := range m.DeploymentAssignments {
		if err := applyDeploymentAssignment(store, r); err != nil {
			return fmt.Errorf("apply deployment assignment %q: %w", r.DeploymentID, err)
		}
	}

	return nil
}

func applyDataStream(store storage.Store, r dataStreamResource) error {
	existing, err := store.GetDataStream(r.Name)
	if err != nil {
		// The store reports a missing entry as an error; treat it as absent.
		existing = nil
	}

	lifecycle := &types.LifecycleSpec{}
	if r.DataRetention != "" {
		d, err := time.ParseDuration(r.DataRetention)
		if err != nil {
			return fmt.Errorf("parse dataRetention: %w", err)
		}
		lifecycle.DataRetention = &d
	}
	if r.MaxAge != "" {
		d, err := time.ParseDuration(r.MaxAge)
		if err != nil {
			return fmt.Errorf("parse maxAge: %w", err)
		}
		lifecycle.ConfiguredMaxAge = &d
	}
	lifecycle.ConfiguredMaxDocs = r.MaxDocs

	ds := existing
	if ds == nil {
		ds = &types.DataStream{Name: r.Name}
		fmt.Printf("creating data stream: %s\n", r.Name)
	} else {
		fmt.Printf("updating data stream lifecycle: %s\n", r.Name)
	}
	ds.Lifecycle = lifecycle

	return store.UpsertDataStream(ds)
}

func applyDeploymentAssignment(store storage.Store, r deploymentAssignmentResource) error {
	existing, err := store.GetDeploymentAssignment(r.DeploymentID)
	if err != nil {
		// The store reports a missing entry as an error; treat it as absent.
		existing = nil
	}
	if existing == nil {
		fmt.Printf("creating deployment assignment: %s\n", r.DeploymentID)
	} else {
		fmt.Printf("updating deployment assignment: %s\n", r.DeploymentID)
	}

	return store.UpsertDeploymentAssignment(&types.DeploymentAssignment{
		DeploymentID:           r.DeploymentID,
		AdaptiveAllocations:    r.AdaptiveAllocations,
		MinAllocations:         r.MinAllocations,
		MaxAllocations:         r.MaxAllocations,
		TotalTargetAllocations: r.TotalTargetAllocations,
	})
}
