package mqtt

import (
	"regexp"
	"testing"
)

func TestBaseClientID(t *testing.T) {
	pattern := regexp.MustCompile(`^relay-.+-[0-9a-f]{8}$`)

	first := baseClientID("relay")
	second := baseClientID("relay")

	if !pattern.MatchString(first) {
		t.Errorf("baseClientID() = %s; want relay-<host>-<8 hex>", first)
	}
	if first == second {
		t.Errorf("baseClientID() returned %s twice; want a new instance per call", first)
	}
}
