package openpmd

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"openpmd/ioengine"
)

// SeriesOptions configures OpenSeries beyond the always-required
// pattern/access/encoding/handler quartet. Pointer fields distinguish
// "not set, use the default" from an explicit value, the same
// convention the teacher's ingester options structs use (e.g.
// SyslogTCPIngesterOptions).
type SeriesOptions struct {
	// DeferIterationParsing skips the eager Refresh of each iteration
	// discovered when opening an existing Series, leaving it
	// ParseStateDeferred until something touches it (§9's deferred-parse
	// design). Defaults to false (parse eagerly). Takes precedence over
	// the defer_iteration_parsing configuration key when both are set.
	DeferIterationParsing *bool

	// Configuration is the user-supplied backend configuration: inline
	// JSON, inline TOML, or "@path/to/file.json"/".toml". Keys this
	// engine never consults are reported in a warning at the first
	// Flush (§4.8).
	Configuration string

	// Logger receives the Series' lifecycle and warning records. nil
	// disables logging.
	Logger *slog.Logger
}

// iterationDiscoverer is implemented by handlers (e.g. jsonfile.Driver)
// that can enumerate a file-based Series' iterations directly from the
// backend, without a LIST_PATHS round-trip through whichever
// CREATE_PATH calls happen to have registered children on the root
// node. For EncodingFileBased its names are merged with those LIST_PATHS
// reports (see listExistingIterationNames).
type iterationDiscoverer interface {
	DiscoverIterations() ([]string, error)
}

// discoverIterations populates s.iterations/s.order for a Series opened
// against an existing backend resource. It re-reads the root
// attributes (recovering meshesPath/particlesPath as they were written
// by whoever created the Series), lists the iterations that exist —
// a generic LIST_PATHS at the root, plus, for file-based encoding, any
// names the handler's own DiscoverIterations adds — links and adopts
// each one not already known, and, unless
// deferParsing is set, immediately Refreshes it.
func (s *Series) discoverIterations(ctx context.Context, deferParsing bool) error {
	if err := s.seriesAttrs.ReadAttributes(ctx); err != nil {
		return err
	}
	if attr, ok := s.seriesAttrs.GetAttribute("meshesPath"); ok {
		if v, ok := attr.AsString(); ok {
			s.meshesPath = v
		}
	}
	if attr, ok := s.seriesAttrs.GetAttribute("particlesPath"); ok {
		if v, ok := attr.AsString(); ok {
			s.particlesPath = v
		}
	}

	names, err := s.listExistingIterationNames(ctx)
	if err != nil {
		return err
	}

	type observed struct {
		base  string
		index int
		width int
	}
	var matches []observed
	for _, name := range names {
		base := name
		if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
			base = name[idx+1:]
		}
		index, width, ok := s.pattern.matchIterationFilename(base)
		if !ok {
			continue
		}
		matches = append(matches, observed{base: base, index: index, width: width})
	}

	// §4.5: %0NT fixes the padding up front; a bare %T detects it from
	// the first zero-padded filename observed, and newly created
	// iterations then choose the same padding. Either way, a filename
	// whose digit width does not fit the padding is UnexpectedContent.
	padding := s.pattern.Padding
	if s.pattern.VariablePadding {
		for _, m := range matches {
			if m.width > len(strconv.Itoa(m.index)) {
				padding = m.width
				break
			}
		}
	}
	for _, m := range matches {
		if err := validateObservedWidth(padding, m.index, m.width, m.base); err != nil {
			return err
		}
	}
	if s.pattern.VariablePadding && padding > 0 {
		s.pattern.Padding = padding
	}

	for _, m := range matches {
		if _, exists := s.iterations[m.index]; exists {
			continue
		}

		w := &Writable{}
		if err := w.LinkHierarchy(s.root, s.iterationLinkKey(m.index)); err != nil {
			return err
		}
		it := newIteration(w, m.index, false)
		if deferParsing {
			it.parseState = ParseStateDeferred
			it.closeStatus = CloseStatusParseAccessDeferred
		} else if err := it.Refresh(ctx); err != nil {
			return err
		}
		s.iterations[m.index] = it
		s.order = append(s.order, m.index)
	}
	sort.Ints(s.order)
	return nil
}

// validateObservedWidth rejects a filename whose digit width cannot
// have been produced by a series padding its indices to padding
// digits: shorter than the padding, or zero-padded to a different
// width. A wider-than-padding name without leading zeros is index
// overflow and accepted.
func validateObservedWidth(padding, index, width int, base string) error {
	if padding == 0 || width == padding {
		return nil
	}
	if width > padding && width == len(strconv.Itoa(index)) {
		return nil
	}
	return ioengine.NewReadError(ioengine.AffectedFile, ioengine.ReasonUnexpectedContent, "",
		fmt.Sprintf("file %q pads its iteration index to %d digits where the series uses %d", base, width, padding))
}

// listExistingIterationNames returns the raw, unparsed iteration names
// the backend reports, in no particular guaranteed order (the caller
// parses and sorts). LIST_PATHS against the root node is the primary,
// always-correct source: it reflects exactly the CREATE_PATH calls
// WriteIteration issued, regardless of how the handler happens to lay
// iterations out on its backend storage. For EncodingFileBased, a
// handler that can also enumerate on-disk iteration files directly
// (e.g. a true one-directory-per-iteration layout) contributes any
// names LIST_PATHS would miss — the union of the two is returned,
// deduplicated.
func (s *Series) listExistingIterationNames(ctx context.Context) ([]string, error) {
	var listed []string
	if err := s.root.Enqueue(ioengine.OpListPaths, ioengine.ListPathsParameters{Paths: &listed}); err != nil {
		return nil, err
	}
	if err := s.root.Handler().Flush(ctx); err != nil {
		return nil, err
	}

	if s.encoding != EncodingFileBased {
		return listed, nil
	}
	disco, ok := s.state.handler.(iterationDiscoverer)
	if !ok {
		return listed, nil
	}
	onDisk, err := disco.DiscoverIterations()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(listed))
	for _, name := range listed {
		seen[name] = true
	}
	for _, name := range onDisk {
		if !seen[name] {
			listed = append(listed, name)
			seen[name] = true
		}
	}
	return listed, nil
}
