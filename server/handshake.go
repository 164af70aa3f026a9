// Package server implements the client protocol surface (spec §4.9): the
// handshake every incoming connection goes through, the session lifecycle
// that follows, and the core process's admin-dump/signal handling.
package server

import (
	"errors"

	"github.com/gulmcluster/gulmd/authz"
	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// ErrBadCluster, ErrBadConfig, ErrAuthRejected, and ErrPartitionMismatch
// are the handshake rejection reasons from spec §4.9 step 2.
var (
	ErrBadCluster        = errors.New("server: cluster name mismatch")
	ErrBadConfig         = errors.New("server: config hash mismatch")
	ErrAuthRejected      = errors.New("server: name/ip authorization rejected")
	ErrPartitionMismatch = errors.New("server: lt_partitions mismatch")
)

// ValidateHandshake applies spec §4.9 step 2: cluster name must match;
// config hash must match for a server-peer connection (RoleClaim in
// {Slave, Pending, Arbitrating, Master}); the name<->IP mapping must pass
// the authorization hook; and, per spec §9's resolution of the
// partition-count open question, a connection that announces a nonzero
// Partitions count is refused outright if it disagrees with this
// process's configured lt_partitions. Client and LT/ltpx connections
// (RoleClaim == Client) are exempt from the config-hash check — only
// peers voting in quorum need provably identical configuration.
func ValidateHandshake(login *wire.LoginRecord, cfg *configs.Config, selfHash [32]byte, hook authz.Hook) error {
	if login.ClusterName != cfg.ClusterName {
		return ErrBadCluster
	}
	serverPeer := registry.IsServerRole(login.RoleClaim) || login.RoleClaim == wire.RolePending
	if serverPeer && login.ConfigHash != selfHash {
		return ErrBadConfig
	}
	if login.Partitions != 0 && int(login.Partitions) != cfg.LTPartitions {
		return ErrPartitionMismatch
	}
	if login.Name != "" {
		if !hook.Authorize(login.Name, login.IP) {
			return ErrAuthRejected
		}
	}
	return nil
}
