package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveIfDevNoopWhenUnset(t *testing.T) {
	cfg := Defaults()
	cfg.IP = "1.2.3.4"
	resolveIfDev(&cfg)
	assert.Equal(t, "1.2.3.4", cfg.IP)
}

func TestResolveIfDevLeavesIPOnUnknownInterface(t *testing.T) {
	cfg := Defaults()
	cfg.IP = "1.2.3.4"
	cfg.IfDev = "no-such-interface-xyz"
	resolveIfDev(&cfg)
	assert.Equal(t, "1.2.3.4", cfg.IP)
}
