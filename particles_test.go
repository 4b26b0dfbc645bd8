package openpmd

import "testing"

func TestParticlesRecordsAndSpeciesAttributes(t *testing.T) {
	root, _ := newTestRoot()
	p := NewParticles(root, nil)

	if err := p.SetParticleShape(1.0); err != nil {
		t.Fatalf("SetParticleShape: %v", err)
	}
	if err := p.SetCurrentDeposition("Esirkepov"); err != nil {
		t.Fatalf("SetCurrentDeposition: %v", err)
	}
	if err := p.SetParticlePush("Boris"); err != nil {
		t.Fatalf("SetParticlePush: %v", err)
	}
	if err := p.SetParticleInterpolation("trilinear"); err != nil {
		t.Fatalf("SetParticleInterpolation: %v", err)
	}

	position, ok := p.Records.Get("position")
	if !ok {
		t.Fatalf("expected auto-creation of the position record")
	}
	position.Components.Get("x")
	position.Components.Get("y")
	if position.Components.Len() != 2 {
		t.Fatalf("position.Components.Len() = %d, want 2", position.Components.Len())
	}

	weighting, _ := p.Records.Get("weighting")
	weighting.Components.Get(scalarRecordComponentKey)
	if !weighting.IsScalar() {
		t.Fatalf("expected weighting to be a scalar record")
	}

	if p.Records.Len() != 2 {
		t.Fatalf("Records.Len() = %d, want 2", p.Records.Len())
	}
}

func TestParticlePatchesContainersAreIndependent(t *testing.T) {
	root, _ := newTestRoot()
	pp := NewParticlePatches(root, nil)

	pp.NumParticles.Get("rank0")
	pp.Offset.Get("rank0")

	if pp.NumParticles.Len() != 1 {
		t.Fatalf("NumParticles.Len() = %d, want 1", pp.NumParticles.Len())
	}
	if pp.NumParticlesOffset.Len() != 0 {
		t.Fatalf("NumParticlesOffset.Len() = %d, want 0 (containers must not share state)", pp.NumParticlesOffset.Len())
	}
	if pp.Extent.Len() != 0 {
		t.Fatalf("Extent.Len() = %d, want 0", pp.Extent.Len())
	}
}
