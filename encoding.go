package openpmd

import (
	"regexp"
	"strconv"
	"strings"

	"openpmd/ioengine"
)

// IterationEncoding selects how a Series lays out its iterations on
// the backend, per §4.5.
type IterationEncoding int

const (
	EncodingFileBased IterationEncoding = iota
	EncodingGroupBased
	EncodingVariableBased
)

func (e IterationEncoding) String() string {
	switch e {
	case EncodingGroupBased:
		return "group_based"
	case EncodingVariableBased:
		return "variable_based"
	default:
		return "file_based"
	}
}

// filenamePattern holds the result of parsing a user-supplied
// name[%0NT][.ext] pattern, per §6's "Filename patterns" and §4.5's
// parseInput.
type filenamePattern struct {
	Directory string
	Base      string
	Extension string

	// Padding is the fixed digit width from a %0NT placeholder, or 0 if
	// the pattern used a bare %T (variable padding, detected during
	// directory scanning).
	Padding int
	// VariablePadding is true for a bare %T pattern.
	VariablePadding bool
}

var paddedPlaceholder = regexp.MustCompile(`%0(\d+)T`)

// parseFilenamePattern splits path into directory/base/extension and
// locates the %T or %0NT placeholder. The extension, if present,
// supersedes any encoding-derived default for format selection (§6).
func parseFilenamePattern(path string) (filenamePattern, error) {
	dir := ""
	base := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		dir, base = path[:idx], path[idx+1:]
	}

	ext := ""
	if idx := strings.LastIndexByte(base, '.'); idx > 0 {
		ext = base[idx+1:]
		base = base[:idx]
	}

	if m := paddedPlaceholder.FindStringSubmatch(base); m != nil {
		width, err := strconv.Atoi(m[1])
		if err != nil {
			return filenamePattern{}, ioengine.NewParseError("invalid padding width in %q", base)
		}
		return filenamePattern{
			Directory: dir,
			Base:      strings.Replace(base, m[0], "%T", 1),
			Extension: ext,
			Padding:   width,
		}, nil
	}
	if strings.Contains(base, "%T") {
		return filenamePattern{Directory: dir, Base: base, Extension: ext, VariablePadding: true}, nil
	}
	return filenamePattern{}, ioengine.NewParseError("filename pattern %q contains no %%T or %%0NT placeholder", path)
}

// patternString renders the pattern back to its name[%0NT][.ext] form,
// reflecting any suffix canonicalization applied since parsing.
func (p filenamePattern) patternString() string {
	name := p.Base
	if p.Padding > 0 {
		name = strings.Replace(name, "%T", "%0"+strconv.Itoa(p.Padding)+"T", 1)
	}
	if p.Extension != "" {
		name += "." + p.Extension
	}
	if p.Directory != "" {
		return p.Directory + "/" + name
	}
	return name
}

// iterationFilename renders the pattern for a concrete iteration index,
// using width digits of padding (0 for variable padding means "as wide
// as needed").
func (p filenamePattern) iterationFilename(index int, width int) string {
	digits := strconv.Itoa(index)
	if width > len(digits) {
		digits = strings.Repeat("0", width-len(digits)) + digits
	}
	name := strings.Replace(p.Base, "%T", digits, 1)
	if p.Extension != "" {
		name += "." + p.Extension
	}
	if p.Directory != "" {
		return p.Directory + "/" + name
	}
	return name
}

// matchIterationFilename reports whether name matches the pattern's
// base (ignoring directory, which the caller already scoped the scan
// to), returning the parsed iteration index and the padding width
// observed. ok is false if name does not match the pattern shape at
// all. A width mismatch against an already-fixed pattern is the
// caller's responsibility to reject as UnexpectedContent (§4.5).
func (p filenamePattern) matchIterationFilename(name string) (index int, width int, ok bool) {
	prefix, suffix := p.Base, ""
	if i := strings.Index(p.Base, "%T"); i >= 0 {
		prefix, suffix = p.Base[:i], p.Base[i+2:]
	}
	rest := name
	if p.Extension != "" {
		dotExt := "." + p.Extension
		if !strings.HasSuffix(rest, dotExt) {
			return 0, 0, false
		}
		rest = strings.TrimSuffix(rest, dotExt)
	}
	if !strings.HasPrefix(rest, prefix) || !strings.HasSuffix(rest, suffix) {
		return 0, 0, false
	}
	digits := rest[len(prefix) : len(rest)-len(suffix)]
	if digits == "" {
		return 0, 0, false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0, 0, false
	}
	return n, len(digits), true
}
