package configs

import (
	"os"

	"github.com/tidwall/gjson"
)

// JSONCCS answers CCS lookups against a single JSON document standing in
// for the CCS tree, using gjson's dotted path queries — a direct match for
// CCS's "path-indexed lookup" contract (spec §6).
type JSONCCS struct {
	doc string
}

// LoadJSONCCS reads the JSON document from path once; gjson queries
// operate on the raw bytes without building an intermediate map.
func LoadJSONCCS(path string) (*JSONCCS, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &JSONCCS{doc: string(b)}, nil
}

func (c *JSONCCS) Get(path string) (string, bool) {
	res := gjson.Get(c.doc, toGJSONPath(path))
	if !res.Exists() {
		return "", false
	}
	return res.String(), true
}

// toGJSONPath turns "/cluster/gulm/heartbeat_rate" into
// "cluster.gulm.heartbeat_rate".
func toGJSONPath(path string) string {
	return toPropertyKey(path)
}
