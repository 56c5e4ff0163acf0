// Package nametemplate expands the <token> templates profiles use to name
// their rename/convert output, and carries the set of built-in profiles
// every valid Config must contain. Hand-built as a small custom scanner
// rather than text/template, in the same plain, non-reflective style as
// manual output-name assembly elsewhere in the codebase.
package nametemplate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"namefix/pkg/types"
)

// Context carries every value a template token can draw from.
type Context struct {
	Birthtime    time.Time
	OriginalPath string
	Ext          string // lowercased, with leading dot
	Prefix       string
	Counter      int // 0 means "no counter requested yet"
}

// NewContext derives a Context from a source path and its birth time. Ext
// is lowercased and includes the leading dot; Prefix is trimmed and has
// internal whitespace collapsed to underscores.
func NewContext(srcPath string, birthtime time.Time, prefix string) Context {
	return Context{
		Birthtime:    birthtime,
		OriginalPath: srcPath,
		Ext:          strings.ToLower(filepath.Ext(srcPath)),
		Prefix:       normalizePrefix(prefix),
	}
}

func normalizePrefix(prefix string) string {
	trimmed := strings.TrimSpace(prefix)
	return strings.Join(strings.Fields(trimmed), "_")
}

var tokenPattern = regexp.MustCompile(`<([a-zA-Z]+)(?::([^>]*))?>`)

// Expand substitutes every <token> in template using ctx. Unknown tokens
// pass through literally. If the template contains
// <ext>, the expansion IS the final filename; otherwise the caller must
// append the source extension (see HasExtToken).
func Expand(template string, ctx Context) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := tokenPattern.FindStringSubmatch(match)
		name, arg := groups[1], groups[2]
		value, ok := resolveToken(name, arg, ctx)
		if !ok {
			return match
		}
		return value
	})
}

// HasExtToken reports whether template already expands <ext> somewhere,
// meaning the engine must not append the source extension again.
func HasExtToken(template string) bool {
	for _, m := range tokenPattern.FindAllStringSubmatch(template, -1) {
		if strings.EqualFold(m[1], "ext") {
			return true
		}
	}
	return false
}

func resolveToken(name, arg string, ctx Context) (string, bool) {
	lower := strings.ToLower(name)
	switch lower {
	case "date":
		return ctx.Birthtime.Format("2006-01-02"), true
	case "time":
		return ctx.Birthtime.Format("15-04-05"), true
	case "datetime":
		return ctx.Birthtime.Format("2006-01-02") + "_" + ctx.Birthtime.Format("15-04-05"), true
	case "original":
		base := filepath.Base(ctx.OriginalPath)
		return strings.TrimSuffix(base, filepath.Ext(base)), true
	case "ext":
		return ctx.Ext, true
	case "prefix":
		return ctx.Prefix, true
	case "year":
		return ctx.Birthtime.Format("2006"), true
	case "month":
		return fmt.Sprintf("%02d", ctx.Birthtime.Month()), true
	case "day":
		return fmt.Sprintf("%02d", ctx.Birthtime.Day()), true
	case "hour":
		return fmt.Sprintf("%02d", ctx.Birthtime.Hour()), true
	case "minute":
		return fmt.Sprintf("%02d", ctx.Birthtime.Minute()), true
	case "second":
		return fmt.Sprintf("%02d", ctx.Birthtime.Second()), true
	case "counter":
		width := 3
		if arg != "" {
			if n, err := strconv.Atoi(arg); err == nil && n > 0 {
				width = n
			}
		}
		return fmt.Sprintf("%0*d", width, ctx.Counter), true
	case "upper", "lower", "slug":
		if arg == "" {
			return "", true
		}
		inner, ok := resolveToken(arg, "", ctx)
		if !ok {
			return "", false
		}
		return applyTransform(lower, inner), true
	default:
		return "", false
	}
}

func applyTransform(transform, value string) string {
	switch transform {
	case "upper":
		return strings.ToUpper(value)
	case "lower":
		return strings.ToLower(value)
	case "slug":
		return slugify(value)
	default:
		return value
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(value string) string {
	lowered := strings.ToLower(value)
	slug := slugInvalid.ReplaceAllString(lowered, "-")
	return strings.Trim(slug, "-")
}

// BuiltinProfiles returns the default profile set every valid Config must
// contain (matched by id; missing ones are re-injected at load time).
func BuiltinProfiles() []types.Profile {
	return []types.Profile{
		{
			ID:       "heic-convert",
			Name:     "HEIC to JPEG",
			Enabled:  true,
			Pattern:  "*.heic",
			Template: "<original>",
			Priority: 0,
			Action:   types.ActionConvert,
		},
		{
			ID:       "screenshots",
			Name:     "Screenshots",
			Enabled:  true,
			Pattern:  "Screenshot*",
			Prefix:   "Screenshot",
			Template: "<prefix>_<datetime>",
			Priority: 1,
			Action:   types.ActionRename,
		},
		{
			ID:       "screen-recordings",
			Name:     "Screen Recordings",
			Enabled:  true,
			Pattern:  "Screen Recording*",
			Prefix:   "Screen_Recording",
			Template: "<prefix>_<datetime>",
			Priority: 2,
			Action:   types.ActionRename,
		},
	}
}

// EnsureBuiltins appends any built-in profile missing from profiles
// (matched by id), preserving the caller's existing order and entries.
func EnsureBuiltins(profiles []types.Profile) []types.Profile {
	have := make(map[string]bool, len(profiles))
	for _, p := range profiles {
		have[p.ID] = true
	}
	result := append([]types.Profile{}, profiles...)
	for _, def := range BuiltinProfiles() {
		if !have[def.ID] {
			result = append(result, def)
		}
	}
	return result
}

// DefaultTemplate is the canonical idempotent naming scheme namefix's own
// built-in profiles and legacy-migration fallback converge on:
// "<prefix>_<date>_<time>".
const DefaultTemplate = "<prefix>_<date>_<time>"

// idempotentPattern matches the shape rename.NeedsRenameForProfile
// treats as already-renamed: {prefix}_{YYYY-MM-DD}_{HH-MM-SS}[_N].{ext}
var idempotentPattern = regexp.MustCompile(`^.+_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}(_\d+)?\.[A-Za-z0-9]+$`)

// MatchesIdempotentShape reports whether basename already looks like output
// of the default template, meaning re-processing it should be a no-op.
func MatchesIdempotentShape(basename string) bool {
	return idempotentPattern.MatchString(basename)
}
