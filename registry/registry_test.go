package registry

import (
	"net"
	"testing"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertOrUpdateIdempotentSameIP(t *testing.T) {
	r := New(authz.AllowAll{})
	ip := net.ParseIP("10.0.0.1")

	n1, err := r.InsertOrUpdate("node-a", ip, wire.NodeLoggedIn, wire.RoleClient)
	require.NoError(t, err)

	n2, err := r.InsertOrUpdate("node-a", ip, wire.NodeLoggedIn, wire.RoleClient)
	require.NoError(t, err)
	assert.Same(t, n1, n2)
	assert.Equal(t, 1, r.Len())
}

func TestInsertOrUpdateRejectsDifferingIP(t *testing.T) {
	r := New(authz.AllowAll{})
	ip1 := net.ParseIP("10.0.0.1")
	ip2 := net.ParseIP("10.0.0.2")

	_, err := r.InsertOrUpdate("node-a", ip1, wire.NodeLoggedIn, wire.RoleClient)
	require.NoError(t, err)

	_, err = r.InsertOrUpdate("node-a", ip2, wire.NodeLoggedIn, wire.RoleClient)
	assert.ErrorIs(t, err, ErrAuthRejected)

	n := r.Get("node-a")
	require.NotNil(t, n)
	assert.True(t, n.IP.Equal(ip1))
}

func TestInsertOrUpdateConsultsAuthzForNewNode(t *testing.T) {
	hook := authz.StaticMap{"node-a": net.ParseIP("10.0.0.1")}
	r := New(hook)

	_, err := r.InsertOrUpdate("node-a", net.ParseIP("10.0.0.9"), wire.NodeLoggedIn, wire.RoleClient)
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, 0, r.Len())

	_, err = r.InsertOrUpdate("node-a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleClient)
	assert.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestIterateByLRUOrdersLeastRecentFirst(t *testing.T) {
	r := New(authz.AllowAll{})
	for _, name := range []string{"a", "b", "c"} {
		_, err := r.InsertOrUpdate(name, net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleClient)
		require.NoError(t, err)
	}
	// Touch "a" again so it moves to the head; "b" and "c" stay put.
	r.Touch("a", 100, 10)

	var order []string
	r.IterateByLRU(func(n *Node) bool {
		order = append(order, n.Name)
		return true
	})
	assert.Equal(t, []string{"b", "c", "a"}, order)
}

func TestMarkExpiredRemovesFromLRUButKeepsNode(t *testing.T) {
	r := New(authz.AllowAll{})
	_, err := r.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleClient)
	require.NoError(t, err)

	require.NoError(t, r.MarkExpired("a"))

	var order []string
	r.IterateByLRU(func(n *Node) bool {
		order = append(order, n.Name)
		return true
	})
	assert.Empty(t, order)

	n := r.Get("a")
	require.NotNil(t, n)
	assert.Equal(t, wire.NodeExpired, n.State)
	assert.Equal(t, wire.NodeLoggedIn, n.PrevState)
}

func TestMarkOldMasterLoginStaysInLRU(t *testing.T) {
	r := New(authz.AllowAll{})
	_, err := r.InsertOrUpdate("a", net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleMaster)
	require.NoError(t, err)

	require.NoError(t, r.MarkOldMasterLogin("a"))

	var seen bool
	r.IterateByLRU(func(n *Node) bool {
		if n.Name == "a" {
			seen = true
		}
		return true
	})
	assert.True(t, seen)
}

func TestTransitionOnUnknownNodeErrors(t *testing.T) {
	r := New(authz.AllowAll{})
	assert.ErrorIs(t, r.MarkLogin("ghost"), ErrUnknownNode)
	assert.ErrorIs(t, r.MarkLogout("ghost"), ErrUnknownNode)
	assert.ErrorIs(t, r.MarkExpired("ghost"), ErrUnknownNode)
}

func TestIterateByNameSortedRegardlessOfInsertOrder(t *testing.T) {
	r := New(authz.AllowAll{})
	for _, name := range []string{"zeta", "alpha", "mu"} {
		_, err := r.InsertOrUpdate(name, net.ParseIP("10.0.0.1"), wire.NodeLoggedIn, wire.RoleClient)
		require.NoError(t, err)
	}

	var order []string
	r.IterateByName(func(n *Node) {
		order = append(order, n.Name)
	})
	assert.Equal(t, []string{"alpha", "mu", "zeta"}, order)
}
