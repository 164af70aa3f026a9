package configs

import "github.com/magiconair/properties"

// FileCCS answers CCS lookups from a ".properties" file, the "file" layer
// named in spec §4.10. Keys are stored flat (the leading
// "/cluster/gulm/" is stripped before lookup, dots standing in for path
// separators) since properties files are not natively hierarchical.
type FileCCS struct {
	props *properties.Properties
}

// LoadFileCCS reads path with github.com/magiconair/properties, the same
// dependency the teacher only exercised through its test-assertion
// sub-package; here it does the production job its name promises.
func LoadFileCCS(path string) (*FileCCS, error) {
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, err
	}
	return &FileCCS{props: props}, nil
}

func (c *FileCCS) Get(path string) (string, bool) {
	return c.props.Get(toPropertyKey(path))
}

// toPropertyKey turns "/cluster/gulm/heartbeat_rate" into
// "cluster.gulm.heartbeat_rate".
func toPropertyKey(path string) string {
	out := make([]byte, 0, len(path))
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			if i == 0 {
				continue
			}
			out = append(out, '.')
			continue
		}
		out = append(out, path[i])
	}
	return string(out)
}
