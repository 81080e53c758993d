package reconcile

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/hpct-slurm-client-operator/pkg/daemon"
	"github.com/canonical/hpct-slurm-client-operator/pkg/facts"
	"github.com/canonical/hpct-slurm-client-operator/pkg/relation"
	"github.com/canonical/hpct-slurm-client-operator/pkg/system"
	"github.com/canonical/hpct-slurm-client-operator/pkg/sysinfo"
	"github.com/canonical/hpct-slurm-client-operator/pkg/types"
)

var (
	secretScope     = types.Scope{Relation: types.RelationAuthMunge, ID: 1}
	controllerScope = types.Scope{Relation: types.RelationController, ID: 2}
	computeScope    = types.Scope{Relation: types.RelationCompute, ID: 3}
)

type fixture struct {
	store      *facts.BoltStore
	rec        *system.Recorder
	bags       *relation.DirBags
	reconciler *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := facts.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec := system.NewRecorder()
	bags := relation.NewDirBags(t.TempDir())
	probe := &sysinfo.StaticProbe{Host: "node-1", IP: "10.1.1.1", CPUs: 4, MemMB: 2048}
	return &fixture{
		store:      store,
		rec:        rec,
		bags:       bags,
		reconciler: New(store, daemon.NewController(rec, daemon.DefaultSpecs()), bags, probe, "node-1"),
	}
}

func (f *fixture) putSecret(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Put(secretScope, types.KeySecretValue, "abc123"))
}

func (f *fixture) putController(t *testing.T) {
	t.Helper()
	require.NoError(t, f.store.Put(controllerScope, types.KeyControllerAddress, "10.0.0.1"))
	require.NoError(t, f.store.Put(controllerScope, types.KeyControllerPort, "6817"))
	require.NoError(t, f.store.Put(controllerScope, types.KeyClusterName, "hpc"))
	require.NoError(t, f.store.Put(controllerScope, types.KeyPartitionName, "batch"))
}

func TestIncompleteStateInstallsPackagesOnly(t *testing.T) {
	f := newFixture(t)

	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusWaiting, Reason: "secret"}, st)

	// Install is unconditional and safe early; nothing else may run.
	assert.Equal(t, 1, f.rec.CallCount("install munge"))
	assert.Equal(t, 1, f.rec.CallCount("install slurmd"))
	assert.Equal(t, 0, f.rec.CallCount("write"))
	assert.Equal(t, 0, f.rec.CallCount("restart"))
}

func TestSecretOnlyConfiguresAuthDaemon(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)

	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusWaiting, Reason: "controller"}, st)

	assert.Equal(t, 1, f.rec.CallCount("write /etc/munge/munge.key"))
	assert.Equal(t, 1, f.rec.CallCount("restart munge"))
	assert.Equal(t, 0, f.rec.CallCount("write /etc/slurm/slurm.conf"))
}

func TestAllFactsConverge(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)

	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusActive}, st)

	assert.Equal(t, []byte("abc123"), f.rec.Files["/etc/munge/munge.key"])
	conf := string(f.rec.Files["/etc/slurm/slurm.conf"])
	assert.Contains(t, conf, "ClusterName=hpc\n")
	assert.Contains(t, conf, "SlurmctldHost=10.0.0.1\n")
	assert.Contains(t, conf, "SlurmctldPort=6817\n")
	assert.Contains(t, conf, "NodeName=node-1 State=UNKNOWN\n")
	assert.Contains(t, conf, "PartitionName=batch Nodes=node-1 Default=YES State=UP\n")
	assert.True(t, f.rec.Active["munge"])
	assert.True(t, f.rec.Active["slurmd"])

	outcome, err := f.store.Outcome()
	require.NoError(t, err)
	assert.True(t, outcome.Converged)
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)

	_, err := f.reconciler.Run()
	require.NoError(t, err)
	calls := len(f.rec.Calls)

	// A second pass with no fact change issues zero additional operations.
	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.StatusActive, st.Kind)
	assert.Equal(t, calls, len(f.rec.Calls))
}

func TestEventOrderIndependence(t *testing.T) {
	final := func(secretFirst bool) (*fixture, types.Status) {
		f := newFixture(t)
		steps := []func(){
			func() { f.putSecret(t) },
			func() { f.putController(t) },
		}
		if !secretFirst {
			steps[0], steps[1] = steps[1], steps[0]
		}
		var st types.Status
		for _, step := range steps {
			step()
			var err error
			st, err = f.reconciler.Run()
			require.NoError(t, err)
		}
		return f, st
	}

	fa, sta := final(true)
	fb, stb := final(false)

	assert.Equal(t, sta, stb)
	assert.Equal(t, fa.rec.Files, fb.rec.Files)
	assert.Equal(t, fa.rec.Modes, fb.rec.Modes)

	for _, id := range []types.DaemonID{types.DaemonAuth, types.DaemonCompute} {
		a, err := fa.store.DaemonState(id)
		require.NoError(t, err)
		b, err := fb.store.DaemonState(id)
		require.NoError(t, err)
		assert.Equal(t, a.Fingerprint, b.Fingerprint, "daemon %s", id)
		assert.Equal(t, a.Running, b.Running, "daemon %s", id)
	}
}

func TestIdenticalControllerFactsCauseNoChurn(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)

	_, err := f.reconciler.Run()
	require.NoError(t, err)

	// Re-sending identical fields repeats the Puts and triggers another pass.
	f.putController(t)
	_, err = f.reconciler.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, f.rec.CallCount("write /etc/slurm/slurm.conf"))
	assert.Equal(t, 1, f.rec.CallCount("restart slurmd"))
}

func TestWriteFailureBlocksThenRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)
	f.rec.FailWrite["/etc/slurm/slurm.conf"] = fmt.Errorf("disk full")

	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusBlocked, Reason: "write failed: compute"}, st)

	// The auth daemon is independent and was still converged in the same pass.
	assert.Equal(t, 1, f.rec.CallCount("restart munge"))
	assert.Equal(t, 0, f.rec.CallCount("restart slurmd"))

	// The next pass, triggered by any event, retries with unchanged facts.
	st, err = f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusActive}, st)
	assert.True(t, f.rec.Active["slurmd"])
}

func TestInstallFailureSurfacesAsBlocked(t *testing.T) {
	f := newFixture(t)
	f.rec.FailInstall["munge"] = fmt.Errorf("no network")

	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusBlocked, Reason: "install failed: auth"}, st)

	// The other daemon was still attempted.
	assert.Equal(t, 1, f.rec.CallCount("install slurmd"))
}

func TestPublishWritesUnitFactsWithNonce(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Put(computeScope, types.KeyPeerJoined, "true"))

	_, err := f.reconciler.Run()
	require.NoError(t, err)

	bag, err := f.bags.Outbound(computeScope)
	require.NoError(t, err)
	read := func(k string) string {
		v, _ := bag.Read(k)
		return v
	}
	assert.Equal(t, "node-1", read(types.KeyUnitHostname))
	assert.Equal(t, "10.1.1.1", read(types.KeyUnitAddress))
	assert.Equal(t, "node-1", read(types.KeyUnitIdentity))
	assert.Equal(t, "4", read(types.KeyUnitCPUCount))
	assert.Equal(t, "2048", read(types.KeyUnitFreeMemory))
	assert.NotEmpty(t, read(types.KeyNonce))
}

func TestPublishSkipsUnchangedFacts(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Put(computeScope, types.KeyPeerJoined, "true"))

	_, err := f.reconciler.Run()
	require.NoError(t, err)
	bag, err := f.bags.Outbound(computeScope)
	require.NoError(t, err)
	nonce, _ := bag.Read(types.KeyNonce)

	_, err = f.reconciler.Run()
	require.NoError(t, err)
	bag, err = f.bags.Outbound(computeScope)
	require.NoError(t, err)
	again, _ := bag.Read(types.KeyNonce)

	assert.Equal(t, nonce, again, "unchanged facts must not be republished")
}

func TestHostIntegrationFactsWinOverProbe(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)
	hostScope := types.Scope{Relation: types.RelationHostIntegration, ID: 4}
	require.NoError(t, f.store.Put(hostScope, types.KeyHostHostname, "principal-name"))
	require.NoError(t, f.store.Put(hostScope, types.KeyHostAddress, "10.9.9.9"))
	require.NoError(t, f.store.Put(computeScope, types.KeyPeerJoined, "true"))

	_, err := f.reconciler.Run()
	require.NoError(t, err)

	assert.Contains(t, string(f.rec.Files["/etc/slurm/slurm.conf"]), "NodeName=principal-name ")

	bag, err := f.bags.Outbound(computeScope)
	require.NoError(t, err)
	host, _ := bag.Read(types.KeyUnitHostname)
	addr, _ := bag.Read(types.KeyUnitAddress)
	assert.Equal(t, "principal-name", host)
	assert.Equal(t, "10.9.9.9", addr)
}

func TestDepartureUnconfiguresNothingButStopsConverging(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)
	_, err := f.reconciler.Run()
	require.NoError(t, err)

	// Controller departs: its facts are cleared and the unit reports waiting,
	// but the daemons are left as they are until new facts arrive.
	require.NoError(t, f.store.Clear(controllerScope))
	st, err := f.reconciler.Run()
	require.NoError(t, err)
	assert.Equal(t, types.Status{Kind: types.StatusWaiting, Reason: "controller"}, st)
	assert.Equal(t, 1, f.rec.CallCount("write /etc/slurm/slurm.conf"))
}

// brokenStore fails every daemon state save, as a store on a dying disk would.
type brokenStore struct {
	facts.Store
}

func (s *brokenStore) SaveDaemonState(types.DaemonState) error {
	return &facts.PersistenceError{Op: "save daemon state", Err: fmt.Errorf("no space left on device")}
}

func TestPersistenceFailureEscalates(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)

	probe := &sysinfo.StaticProbe{Host: "node-1", IP: "10.1.1.1", CPUs: 4, MemMB: 2048}
	r := New(&brokenStore{Store: f.store}, daemon.NewController(f.rec, daemon.DefaultSpecs()), f.bags, probe, "node-1")

	// All facts are present and every daemon operation succeeds; losing the
	// state save must still fail the pass rather than report active.
	_, err := r.Run()
	var perr *facts.PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestPersistenceFailureOutranksDaemonFailure(t *testing.T) {
	f := newFixture(t)
	f.putSecret(t)
	f.putController(t)
	f.rec.FailWrite["/etc/slurm/slurm.conf"] = fmt.Errorf("disk full")

	probe := &sysinfo.StaticProbe{Host: "node-1", IP: "10.1.1.1", CPUs: 4, MemMB: 2048}
	r := New(&brokenStore{Store: f.store}, daemon.NewController(f.rec, daemon.DefaultSpecs()), f.bags, probe, "node-1")

	// A daemon failure alone would surface as a blocked outcome; combined with
	// a failed save, the fatal error wins.
	_, err := r.Run()
	var perr *facts.PersistenceError
	require.ErrorAs(t, err, &perr)
}

func TestComputeConfigDefaults(t *testing.T) {
	snapshot := types.Snapshot{
		controllerScope: {types.KeyControllerAddress: "10.0.0.1"},
	}
	content, ok := ComputeConfig(snapshot, "node-1")
	require.True(t, ok)
	conf := string(content)
	assert.Contains(t, conf, "ClusterName="+DefaultClusterName+"\n")
	assert.Contains(t, conf, "PartitionName="+DefaultPartitionName+" ")
	assert.NotContains(t, conf, "SlurmctldPort=")
}

func TestComputeConfigRequiresAddressAndHostname(t *testing.T) {
	_, ok := ComputeConfig(types.Snapshot{}, "node-1")
	assert.False(t, ok)

	snapshot := types.Snapshot{
		controllerScope: {types.KeyControllerAddress: "10.0.0.1"},
	}
	_, ok = ComputeConfig(snapshot, "")
	assert.False(t, ok)
}
