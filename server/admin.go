package server

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/pretty"

	"github.com/gulmcluster/gulmd/configs"
	"github.com/gulmcluster/gulmd/registry"
	"github.com/gulmcluster/gulmd/wire"
)

// BuildDump snapshots reg and the process's current role into a Dump.
// Iteration is by name (spec §6's dumps), taking the registry's own lock
// only for the duration of the snapshot (spec §5, "Shared-resource
// policy").
func BuildDump(clusterName string, role wire.Role, reg *registry.Registry) Dump {
	d := Dump{ClusterName: clusterName, Role: role.String()}
	reg.IterateByName(func(n *registry.Node) {
		d.Nodes = append(d.Nodes, DumpNode{
			Name:        n.Name,
			State:       n.State.String(),
			Role:        n.Role.String(),
			MissedBeats: n.MissedBeats,
		})
	})
	return d
}

// DumpNode is one registry row as it appears in an admin dump.
type DumpNode struct {
	Name        string `json:"name"`
	State       string `json:"state"`
	Role        string `json:"role"`
	MissedBeats int    `json:"missed_beats"`
}

// Dump is the full snapshot written on SIGUSR1 (spec §6).
type Dump struct {
	ClusterName string     `json:"cluster_name"`
	Role        string     `json:"role"`
	Nodes       []DumpNode `json:"nodes"`
}

// WriteDump pretty-prints dump as JSON (goccy/go-json for the marshal,
// tidwall/pretty for the formatting, mirroring the teacher's JPrint/
// gossip-message stack) into a fresh file under dir, named like the
// source's Gulm_* dumps. Returns the path written.
func WriteDump(dir string, dump Dump) (string, error) {
	raw, err := json.Marshal(dump)
	if err != nil {
		return "", fmt.Errorf("server: marshaling dump: %w", err)
	}
	formatted := pretty.Pretty(raw)

	path := filepath.Join(dir, fmt.Sprintf("Gulm_%d", time.Now().UnixNano()))
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return "", fmt.Errorf("server: writing dump to %s: %w", path, err)
	}
	configs.Debugf("server: wrote admin dump to %s", path)
	return path, nil
}
