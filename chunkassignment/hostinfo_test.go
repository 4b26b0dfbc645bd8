package chunkassignment

import "testing"

func TestByMethodHostnameReturnsNonEmptyString(t *testing.T) {
	name, err := ByMethod(Hostname)
	if err != nil {
		t.Fatalf("ByMethod(Hostname) error: %v", err)
	}
	if name == "" {
		t.Errorf("ByMethod(Hostname) returned an empty string")
	}
}
