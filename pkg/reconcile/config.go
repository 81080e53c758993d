package reconcile

import (
	"fmt"
	"strings"

	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

// Defaults used when the controller has not (yet) named the cluster or
// partition. Partial controller facts are expected and must not block the
// compute daemon once the address is known.
const (
	DefaultClusterName   = "slurm"
	DefaultPartitionName = "compute"
)

// AuthConfig derives the munge key content from the secret fact. ok is false
// while the secret is absent.
func AuthConfig(snapshot types.Snapshot) (content []byte, ok bool) {
	secret, ok := snapshot.Value(types.RelationAuthMunge, types.KeySecretValue)
	if !ok {
		return nil, false
	}
	return []byte(secret), true
}

// ComputeConfig renders slurm.conf from the controller facts and the node
// hostname. ok is false until the controller address and a hostname are known.
// The output is deterministic: identical facts always render byte-identical
// content, which is what makes the fingerprint comparison meaningful.
func ComputeConfig(snapshot types.Snapshot, hostname string) (content []byte, ok bool) {
	address, ok := snapshot.Value(types.RelationController, types.KeyControllerAddress)
	if !ok || hostname == "" {
		return nil, false
	}

	cluster, ok := snapshot.Value(types.RelationController, types.KeyClusterName)
	if !ok {
		cluster = DefaultClusterName
	}
	partition, ok := snapshot.Value(types.RelationController, types.KeyPartitionName)
	if !ok {
		partition = DefaultPartitionName
	}

	var b strings.Builder
	b.WriteString("# slurm.conf managed by slurm-client-operator; local edits are overwritten.\n")
	fmt.Fprintf(&b, "ClusterName=%s\n", cluster)
	fmt.Fprintf(&b, "SlurmctldHost=%s\n", address)
	if port, ok := snapshot.Value(types.RelationController, types.KeyControllerPort); ok {
		fmt.Fprintf(&b, "SlurmctldPort=%s\n", port)
	}
	fmt.Fprintf(&b, "NodeName=%s State=UNKNOWN\n", hostname)
	fmt.Fprintf(&b, "PartitionName=%s Nodes=%s Default=YES State=UP\n", partition, hostname)
	return []byte(b.String()), true
}
