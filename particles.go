package openpmd

import (
	"context"

	"openpmd/ioengine"
)

// Particles is a species under an Iteration's "particles" container:
// a Container of Records (position, momentum, weighting, id, ...),
// each itself a Container of RecordComponents, plus the species-level
// attributes the openPMD standard defines (particleShape,
// currentDeposition, particlePush, particleInterpolation) and the
// particlePatches sub-hierarchy describing per-writer particle
// domains.
type Particles struct {
	Attributable
	Records       Container[*Record]
	ParticlePatch *ParticlePatches
}

func NewParticles(w *Writable, stepActive func() bool) *Particles {
	p := &Particles{Attributable: NewAttributable(w, stepActive)}
	p.Records = NewContainer(w, true, func() *Record {
		return NewRecord(&Writable{}, stepActive)
	})
	return p
}

func (p *Particles) node() *Writable { return p.Writable }

func (p *Particles) SetParticleShape(shape float64) error {
	return p.SetAttribute("particleShape", ioengine.DoubleAttr(shape))
}

func (p *Particles) SetCurrentDeposition(method string) error {
	return p.SetAttribute("currentDeposition", ioengine.StringAttr(method))
}

func (p *Particles) SetParticlePush(method string) error {
	return p.SetAttribute("particlePush", ioengine.StringAttr(method))
}

func (p *Particles) SetParticleInterpolation(method string) error {
	return p.SetAttribute("particleInterpolation", ioengine.StringAttr(method))
}

// Refresh re-reads this species' own attributes and discovers any
// records not yet known (position, momentum, weighting, ...), each in
// turn recovering its own components. ParticlePatch is left nil: the
// patch sub-hierarchy addresses itself through ParticlePatches' four
// independent containers rather than a single discoverable node, and is
// not reconstructed by this pass.
func (p *Particles) Refresh(ctx context.Context) error {
	if err := p.ReadAttributes(ctx); err != nil {
		return err
	}
	names, err := p.Records.DiscoverChildren(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		record, _ := p.Records.Get(name)
		if err := record.Refresh(ctx); err != nil {
			return err
		}
	}
	return nil
}

// ParticlePatches describes how a species' particles are partitioned
// across writers: one entry per patch, recording the particle-index
// range owned by that patch and its physical offset/extent in the
// simulation domain. Stored as plain RecordComponents under a
// "particlePatches" subgroup rather than a template-typed struct, per
// the same Container-based uniformity used everywhere else.
type ParticlePatches struct {
	Attributable
	NumParticles       Container[*RecordComponent]
	NumParticlesOffset Container[*RecordComponent]
	Offset             Container[*RecordComponent]
	Extent             Container[*RecordComponent]
}

func NewParticlePatches(w *Writable, stepActive func() bool) *ParticlePatches {
	mk := func() Container[*RecordComponent] {
		return NewContainer(w, true, func() *RecordComponent {
			return NewRecordComponent(&Writable{}, stepActive)
		})
	}
	return &ParticlePatches{
		Attributable:       NewAttributable(w, stepActive),
		NumParticles:       mk(),
		NumParticlesOffset: mk(),
		Offset:             mk(),
		Extent:             mk(),
	}
}

func (p *ParticlePatches) node() *Writable { return p.Writable }
